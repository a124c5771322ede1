// Package session implements the persistence session: a unit of work over
// PostgreSQL that tracks entities, turns removals of soft-deletable entities
// into deleted_at updates, cascades those removals through the entities' own
// hooks, stamps timestamps and protects immutable columns on commit.
//
// A Session is not safe for concurrent use. Create one per request.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/metadata"
	"softdeletes/pkg/logger"
)

// Engine is the transactional storage a session commits to.
// *postgres.TxManager implements it.
type Engine interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	GetQuerier(ctx context.Context) postgres.Querier
}

// Auditor records one entry per row written by a commit, inside its transaction.
// *postgres.AuditLog implements it.
type Auditor interface {
	RecordChange(ctx context.Context, entityType string, entityID entity.ID, action postgres.AuditAction, changes map[string]any) error
}

var (
	_ Engine            = (*postgres.TxManager)(nil)
	_ Auditor           = (*postgres.AuditLog)(nil)
	_ entity.UnitOfWork = (*Session)(nil)
	_ metadata.Loader   = relationLoader{}
)

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the timestamp source used by commits.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithAuditor enables audit records for written rows.
func WithAuditor(a Auditor) Option {
	return func(s *Session) { s.auditor = a }
}

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is a unit of work.
type Session struct {
	engine   Engine
	registry *metadata.Registry
	now      func() time.Time
	auditor  Auditor
	log      *logger.Logger

	entries map[key]*entry
	order   []*entry
	seq     int

	// allowRestore lets the next commit write deleted_at. Cleared by every commit.
	allowRestore bool

	// cascade walk state, valid while walking
	walking bool
	pending []removal
	visited map[key]struct{}
}

// New creates an empty session.
func New(engine Engine, registry *metadata.Registry, opts ...Option) *Session {
	s := &Session{
		engine:   engine,
		registry: registry,
		now:      time.Now,
		log:      logger.Default(),
		entries:  make(map[key]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("session")
	return s
}

// Registry returns the descriptors the session works with.
func (s *Session) Registry() *metadata.Registry {
	return s.registry
}

// Add tracks entities for insertion. A nil ID is replaced by a new one.
func (s *Session) Add(entities ...entity.Entity) error {
	for _, e := range entities {
		def, err := s.describe(e)
		if err != nil {
			return err
		}
		if entity.IsNilID(e.GetID()) {
			e.SetID(entity.NewID())
		}

		en, err := s.lookup(e)
		if err != nil {
			return err
		}
		if en != nil {
			// Re-adding a removed entity cancels the removal.
			if en.state == Deleted {
				en.state = Unchanged
				en.mode = entity.Soft
			}
			continue
		}
		s.track(e, def, Added)
	}
	return nil
}

// Attach tracks entities as loaded from storage, unchanged.
func (s *Session) Attach(entities ...entity.Entity) error {
	for _, e := range entities {
		def, err := s.describe(e)
		if err != nil {
			return err
		}
		en, err := s.lookup(e)
		if err != nil {
			return err
		}
		if en == nil {
			s.track(e, def, Unchanged)
		}
	}
	return nil
}

// Detach stops tracking e. Pending changes of e are dropped.
func (s *Session) Detach(e entity.Entity) {
	if en, ok := s.entries[keyOf(e)]; ok && en.entity == e {
		s.detach(en)
	}
}

// Reset drops every tracked entity. Use it to discard a session left
// partially modified by a failed cascade.
func (s *Session) Reset() {
	s.entries = make(map[key]*entry)
	s.order = nil
	s.allowRestore = false
}

// State reports the tracking state of e.
func (s *Session) State(e entity.Entity) EntityState {
	en, ok := s.entries[keyOf(e)]
	if !ok || en.entity != e {
		return Detached
	}
	return en.currentState()
}

// IsForceRemoved reports whether e is tracked for physical removal.
func (s *Session) IsForceRemoved(e entity.Entity) bool {
	en, ok := s.entries[keyOf(e)]
	return ok && en.entity == e && en.state == Deleted && en.mode == entity.Force
}

// Tracked returns the number of tracked entities.
func (s *Session) Tracked() int {
	return len(s.order)
}

func (s *Session) describe(e entity.Entity) (*metadata.EntityDef, error) {
	if e == nil {
		return nil, apperror.NewInternal(fmt.Errorf("nil entity"))
	}
	def, ok := s.registry.Of(e)
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("entity %T (table %q) is not registered", e, e.TableName()))
	}
	return def, nil
}

// lookup returns the entry tracking e, or nil. Another instance with the same
// key is an identity conflict.
func (s *Session) lookup(e entity.Entity) (*entry, error) {
	en, ok := s.entries[keyOf(e)]
	if !ok {
		return nil, nil
	}
	if en.entity != e {
		return nil, apperror.NewConflict("another instance with the same key is already tracked").
			WithDetail("entity", en.def.Name).
			WithDetail("id", e.GetID().String())
	}
	return en, nil
}

func (s *Session) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}
