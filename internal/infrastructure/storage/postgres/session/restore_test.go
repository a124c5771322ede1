package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
	"softdeletes/internal/domain/blog"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/infrastructure/storage/postgres/session"
)

func softDeleteCategory(t *testing.T, f *blogFixture) {
	t.Helper()
	ctx := context.Background()
	s := f.session()
	category, err := session.Find[*blog.Category](ctx, s, f.category.ID)
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, category))
	_, err = s.Commit(ctx)
	require.NoError(t, err)
	f.db.ResetCalls()
}

func TestRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newBlogFixture(t)
	softDeleteCategory(t, f)

	f.now = t0.Add(time.Hour)
	s := f.session()
	category, err := session.Find[*blog.Category](ctx, s, f.category.ID, session.WithDeleted())
	require.NoError(t, err)
	require.True(t, category.IsDeleted())

	n, err := s.Restore(ctx, category)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []string{
		"UPDATE categories SET updated_at = $1, deleted_at = $2, version = version + 1 WHERE id = $3 AND version = $4",
	}, f.db.ExecSQL())
	assert.Nil(t, category.DeletedAt)
	assert.True(t, category.UpdatedAt.Equal(f.now))
	assert.True(t, category.CreatedAt.Equal(created))
	assert.Equal(t, 3, category.Version)
	assert.Equal(t, session.Unchanged, s.State(category))

	assert.Nil(t, f.deletedAt(t, "categories", f.category.ID))
	// Dependents are not restored.
	assert.NotNil(t, f.deletedAt(t, "posts", f.p1.ID))
	assert.NotNil(t, f.deletedAt(t, "comments", f.c1.ID))

	_, err = session.Find[*blog.Category](ctx, f.session(), f.category.ID)
	require.NoError(t, err)
}

func TestRestore_DoesNotLeakToNextCommit(t *testing.T) {
	ctx := context.Background()
	f := newBlogFixture(t)
	softDeleteCategory(t, f)
	s := f.session()

	category, err := session.Find[*blog.Category](ctx, s, f.category.ID, session.WithDeleted())
	require.NoError(t, err)
	_, err = s.Restore(ctx, category)
	require.NoError(t, err)
	f.db.ResetCalls()

	forged := t0
	category.DeletedAt = &forged
	n, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.db.ExecSQL())
	assert.Nil(t, category.DeletedAt)
}

func TestRestore_UntrackedEntity(t *testing.T) {
	ctx := context.Background()
	f := newBlogFixture(t)
	softDeleteCategory(t, f)
	s := f.session()

	posts, err := session.List[*blog.Post](ctx, s, session.Query{IncludeDeleted: true, NoTracking: true})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Zero(t, s.Tracked())

	n, err := s.RestoreRange(ctx, entity.Entities(posts))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Nil(t, f.deletedAt(t, "posts", f.p1.ID))
	assert.Nil(t, f.deletedAt(t, "posts", f.p2.ID))
}

func TestRestore_NotDeletedIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newBlogFixture(t)
	s := f.session()

	post, err := session.Find[*blog.Post](ctx, s, f.p1.ID)
	require.NoError(t, err)

	n, err := s.Restore(ctx, post)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.db.ExecSQL())
}

func TestRestore_RejectsNonSoftDeletable(t *testing.T) {
	f := newBlogFixture(t)
	s := f.session()

	_, err := s.Restore(context.Background(), &tag{Identity: entity.Identity{ID: entity.NewID()}})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestRestore_CancelsPendingRemoval(t *testing.T) {
	ctx := context.Background()
	f := newBlogFixture(t)
	s := f.session()

	post, err := session.Find[*blog.Post](ctx, s, f.p1.ID)
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, post))

	n, err := s.Restore(ctx, post)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, session.Unchanged, s.State(post))

	// The comments the cascade removed are still pending.
	n, err = s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Nil(t, f.deletedAt(t, "posts", f.p1.ID))
	assert.NotNil(t, f.deletedAt(t, "comments", f.c1.ID))
}

func TestRestore_LeavesOtherChangesPending(t *testing.T) {
	ctx := context.Background()
	f := newBlogFixture(t)
	deleted := stored(blog.NewCategory("old"))
	deletedAt := created
	deleted.DeletedAt = &deletedAt
	f.db.Seed(deleted)
	s := f.session()

	post, err := session.Find[*blog.Post](ctx, s, f.p1.ID)
	require.NoError(t, err)
	post.Title = "pending"

	category, err := session.Find[*blog.Category](ctx, s, deleted.ID, session.WithDeleted())
	require.NoError(t, err)
	_, err = s.Restore(ctx, category)
	require.NoError(t, err)

	assert.Len(t, f.db.ExecSQL(), 1)
	assert.Equal(t, session.Modified, s.State(post))

	n, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	row, _ := f.db.Row("posts", f.p1.ID)
	assert.Equal(t, "pending", row["title"])
}

func TestRestore_Audited(t *testing.T) {
	ctx := context.Background()
	f := newBlogFixture(t)
	softDeleteCategory(t, f)
	auditor := &recordingAuditor{}
	s := f.session(session.WithAuditor(auditor))

	category, err := session.Find[*blog.Category](ctx, s, f.category.ID, session.WithDeleted())
	require.NoError(t, err)
	_, err = s.Restore(ctx, category)
	require.NoError(t, err)

	category.Name = "renamed"
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	assert.Equal(t, []postgres.AuditAction{postgres.AuditRestore, postgres.AuditUpdate}, auditor.actions())
}
