package session_test

import (
	"context"
	"os"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/domain/blog"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/internal/metadata"
	"softdeletes/pkg/logger"
)

// openPostgres connects to TEST_DATABASE_URL and applies the schema.
// Tests using it are skipped when the variable is not set.
func openPostgres(t *testing.T) (*postgres.TxManager, *metadata.Registry) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	cfg := postgres.DefaultPoolConfig(dsn)
	cfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.ApplySchema(ctx, pool))

	registry, err := blog.NewRegistry()
	require.NoError(t, err)
	return postgres.NewTxManager(pool), registry
}

func TestPostgres_CascadeRestoreAndForce(t *testing.T) {
	txManager, registry := openPostgres(t)
	ctx := context.Background()
	newSession := func() *session.Session {
		return session.New(txManager, registry, session.WithLogger(logger.NewNop()))
	}

	category := blog.NewCategory("it-" + blog.NewCategory("").ID.String())
	post := blog.NewPost(category.ID, "P1", "")
	c1 := blog.NewComment(post.ID, "C1")
	c2 := blog.NewComment(post.ID, "C2")

	t.Cleanup(func() {
		q := txManager.GetQuerier(ctx)
		_, _ = q.Exec(ctx, "DELETE FROM comments WHERE post_id = $1", post.ID)
		_, _ = q.Exec(ctx, "DELETE FROM posts WHERE id = $1", post.ID)
		_, _ = q.Exec(ctx, "DELETE FROM categories WHERE id = $1", category.ID)
	})

	s := newSession()
	require.NoError(t, s.Add(category, post, c1, c2))
	n, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	// A fresh session sees no loaded collections; the cascade has to query.
	s = newSession()
	found, err := session.Find[*blog.Category](ctx, s, category.ID)
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, found))
	n, err = s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	byName := session.Query{Where: squirrel.Eq{"name": category.Name}}
	s = newSession()
	listed, err := session.List[*blog.Category](ctx, s, byName)
	require.NoError(t, err)
	assert.Empty(t, listed)

	deletedPost, err := session.Find[*blog.Post](ctx, s, post.ID, session.WithDeleted())
	require.NoError(t, err)
	assert.NotNil(t, deletedPost.DeletedAt)
	for _, c := range []*blog.Comment{c1, c2} {
		got, err := session.Find[*blog.Comment](ctx, s, c.ID, session.WithDeleted())
		require.NoError(t, err)
		assert.NotNil(t, got.DeletedAt)
	}

	deletedCategory, err := session.Find[*blog.Category](ctx, s, category.ID, session.WithDeleted())
	require.NoError(t, err)
	restored, err := s.Restore(ctx, deletedCategory)
	require.NoError(t, err)
	assert.Equal(t, int64(1), restored)

	s = newSession()
	listed, err = session.List[*blog.Category](ctx, s, byName)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].DeletedAt)

	_, err = session.Find[*blog.Post](ctx, s, post.ID)
	assert.True(t, apperror.IsNotFound(err), "restore does not cascade")

	// Force removal writes a DELETE, even for a soft-deleted row.
	gone, err := session.Find[*blog.Comment](ctx, s, c1.ID, session.WithDeleted())
	require.NoError(t, err)
	require.NoError(t, s.ForceRemove(ctx, gone))
	n, err = s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	total, err := session.Count[*blog.Comment](ctx, newSession(), session.Query{
		Where:          squirrel.Eq{"id": c1.ID},
		IncludeDeleted: true,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
}
