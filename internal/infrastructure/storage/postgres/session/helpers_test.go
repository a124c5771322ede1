package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"softdeletes/internal/core/entity"
	"softdeletes/internal/domain/blog"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/infrastructure/storage/postgres/pgtest"
	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/internal/metadata"
	"softdeletes/pkg/logger"
)

var (
	created = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t0      = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
)

// tag is a plain entity: no timestamps, no soft delete.
type tag struct {
	entity.Identity
	Label string `db:"label"`
}

func (t *tag) TableName() string { return "tags" }

// node removes its peer when soft-deleted, so two nodes form a cycle.
type node struct {
	entity.Identity
	entity.SoftDelete

	Peer    *node `db:"-"`
	Calls   int   `db:"-"`
	HookErr error `db:"-"`
}

func (n *node) TableName() string { return "nodes" }

func (n *node) LoadRelations(context.Context, entity.UnitOfWork) error { return nil }

func (n *node) OnSoftDelete(ctx context.Context, uow entity.UnitOfWork) error {
	n.Calls++
	if n.HookErr != nil {
		return n.HookErr
	}
	if n.Peer != nil {
		return uow.Remove(ctx, n.Peer)
	}
	return nil
}

// ghost declares soft delete but maps no deleted_at column.
type ghost struct {
	entity.Identity
	deletedAt *time.Time
}

func (g *ghost) TableName() string                                      { return "ghosts" }
func (g *ghost) GetDeletedAt() *time.Time                               { return g.deletedAt }
func (g *ghost) SetDeletedAt(t *time.Time)                              { g.deletedAt = t }
func (g *ghost) IsDeleted() bool                                        { return g.deletedAt != nil }
func (g *ghost) LoadRelations(context.Context, entity.UnitOfWork) error { return nil }
func (g *ghost) OnSoftDelete(context.Context, entity.UnitOfWork) error  { return nil }

func newTestRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	r := metadata.NewRegistry()
	require.NoError(t, blog.Register(r))
	require.NoError(t, r.Register(
		metadata.Define("tag", func() *tag { return &tag{} }),
		metadata.Define("node", func() *node { return &node{} }),
		metadata.Define("ghost", func() *ghost { return &ghost{} }),
	))
	metadata.InstallSoftDeleteFilter(r)
	return r
}

// recordingAuditor collects RecordChange calls.
type recordingAuditor struct {
	mu      sync.Mutex
	records []auditRecord
}

type auditRecord struct {
	entityType string
	id         entity.ID
	action     postgres.AuditAction
	changes    map[string]any
}

func (a *recordingAuditor) RecordChange(_ context.Context, entityType string, id entity.ID, action postgres.AuditAction, changes map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{entityType: entityType, id: id, action: action, changes: changes})
	return nil
}

func (a *recordingAuditor) actions() []postgres.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]postgres.AuditAction, len(a.records))
	for i, r := range a.records {
		out[i] = r.action
	}
	return out
}

// blogFixture is category A with posts P1 (comments C1, C2) and P2 (comment C3),
// all stored and alive.
type blogFixture struct {
	db       *pgtest.DB
	registry *metadata.Registry
	now      time.Time

	category   *blog.Category
	p1, p2     *blog.Post
	c1, c2, c3 *blog.Comment
}

func newBlogFixture(t *testing.T) *blogFixture {
	t.Helper()
	f := &blogFixture{
		db:       pgtest.New(),
		registry: newTestRegistry(t),
		now:      t0,
	}

	f.category = stored(blog.NewCategory("A"))
	f.p1 = stored(blog.NewPost(f.category.ID, "P1", "first"))
	f.p2 = stored(blog.NewPost(f.category.ID, "P2", "second"))
	f.c1 = stored(blog.NewComment(f.p1.ID, "C1"))
	f.c2 = stored(blog.NewComment(f.p1.ID, "C2"))
	f.c3 = stored(blog.NewComment(f.p2.ID, "C3"))

	f.db.Seed(f.category, f.p1, f.p2, f.c1, f.c2, f.c3)
	return f
}

func (f *blogFixture) session(opts ...session.Option) *session.Session {
	opts = append([]session.Option{
		session.WithClock(func() time.Time { return f.now }),
		session.WithLogger(logger.NewNop()),
	}, opts...)
	return session.New(f.db, f.registry, opts...)
}

func (f *blogFixture) deletedAt(t *testing.T, table string, id entity.ID) *time.Time {
	t.Helper()
	row, ok := f.db.Row(table, id)
	require.True(t, ok, "row %s/%s is gone", table, id)
	v, _ := row["deleted_at"].(*time.Time)
	return v
}

type timestamped interface {
	entity.Entity
	entity.Timestamped
}

func stored[T timestamped](e T) T {
	e.SetCreatedAt(created)
	e.SetUpdatedAt(created)
	return e
}
