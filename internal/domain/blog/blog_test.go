package blog

import (
	"context"
	"strings"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softdeletes/internal/core/entity"
	"softdeletes/internal/metadata"
)

// fakeUoW records the calls hooks make.
type fakeUoW struct {
	removed []entity.Entity
	loaded  []string
}

func (u *fakeUoW) Remove(_ context.Context, entities ...entity.Entity) error {
	u.removed = append(u.removed, entities...)
	return nil
}

func (u *fakeUoW) Load(_ context.Context, owner entity.Entity, relation string) error {
	u.loaded = append(u.loaded, owner.TableName()+"."+relation)
	return nil
}

func TestCategoryHooks(t *testing.T) {
	ctx := context.Background()
	c := NewCategory("A")
	p1 := NewPost(c.ID, "P1", "")
	p2 := NewPost(c.ID, "P2", "")
	c.Posts = []*Post{p1, p2}

	uow := &fakeUoW{}
	require.NoError(t, c.LoadRelations(ctx, uow))
	require.NoError(t, c.OnSoftDelete(ctx, uow))

	assert.Equal(t, []string{"categories.posts"}, uow.loaded)
	assert.Equal(t, []entity.Entity{p1, p2}, uow.removed)
}

func TestPostHooks(t *testing.T) {
	ctx := context.Background()
	p := NewPost(entity.NewID(), "P1", "")
	c1 := NewComment(p.ID, "C1")
	p.Comments = []*Comment{c1}

	uow := &fakeUoW{}
	require.NoError(t, p.LoadRelations(ctx, uow))
	require.NoError(t, p.OnSoftDelete(ctx, uow))

	assert.Equal(t, []string{"posts.comments"}, uow.loaded)
	assert.Equal(t, []entity.Entity{c1}, uow.removed)
}

func TestCommentHooksAreNoOps(t *testing.T) {
	ctx := context.Background()
	uow := &fakeUoW{}
	c := NewComment(entity.NewID(), "C1")

	require.NoError(t, c.LoadRelations(ctx, uow))
	require.NoError(t, c.OnSoftDelete(ctx, uow))
	assert.Empty(t, uow.loaded)
	assert.Empty(t, uow.removed)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewCategory("A").Validate(ctx))
	assert.Error(t, NewCategory("  ").Validate(ctx))
	assert.Error(t, NewCategory(strings.Repeat("x", 201)).Validate(ctx))

	assert.NoError(t, NewPost(entity.NewID(), "T", "").Validate(ctx))
	assert.Error(t, NewPost(entity.NewID(), "", "").Validate(ctx))
	assert.Error(t, NewPost(entity.NilID, "T", "").Validate(ctx))

	assert.NoError(t, NewComment(entity.NewID(), "hi").Validate(ctx))
	assert.Error(t, NewComment(entity.NewID(), "").Validate(ctx))
	assert.Error(t, NewComment(entity.NilID, "hi").Validate(ctx))
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for _, def := range r.List() {
		names = append(names, def.Name)
		assert.True(t, def.Has(metadata.CapTimestamps|metadata.CapSoftDelete|metadata.CapVersion), def.Name)
		require.NotNil(t, def.QueryFilter, def.Name)
	}
	assert.Equal(t, []string{EntityCategory, EntityPost, EntityComment}, names)

	post, ok := r.Get(EntityPost)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "version", "created_at", "updated_at", "deleted_at", "title", "description", "category_id"}, post.Columns)

	rel, ok := post.Relation(RelationComments)
	require.True(t, ok)
	assert.Equal(t, EntityComment, rel.Target)
	assert.Equal(t, "post_id", rel.ForeignKey)

	sql, _, err := squirrel.Select("id").From(post.TableName).Where(post.QueryFilter).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM posts WHERE posts.deleted_at IS NULL", sql)
}

func TestRegisterTwiceFails(t *testing.T) {
	r := metadata.NewRegistry()
	require.NoError(t, Register(r))
	assert.Error(t, Register(r))
}
