package session

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/metadata"
)

// Query parameterizes List and Count.
type Query struct {
	Where   squirrel.Sqlizer
	OrderBy []string
	Limit   uint64
	Offset  uint64

	// IncludeDeleted skips the entity's query filter (soft-deleted rows are returned).
	IncludeDeleted bool

	// NoTracking returns rows without attaching them to the session.
	NoTracking bool
}

// ReadOption adjusts a Find.
type ReadOption func(*Query)

// WithDeleted makes Find see soft-deleted rows.
func WithDeleted() ReadOption {
	return func(q *Query) { q.IncludeDeleted = true }
}

// WithoutTracking makes Find return a detached entity.
func WithoutTracking() ReadOption {
	return func(q *Query) { q.NoTracking = true }
}

// descriptorFor returns the descriptor of T.
// T must be a pointer type whose TableName does not read the receiver.
func descriptorFor[T entity.Entity](s *Session) (*metadata.EntityDef, error) {
	var zero T
	def, ok := s.registry.ByTable(zero.TableName())
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("entity %T (table %q) is not registered", zero, zero.TableName()))
	}
	return def, nil
}

func (s *Session) selectFrom(def *metadata.EntityDef, includeDeleted bool, columns ...string) squirrel.SelectBuilder {
	if len(columns) == 0 {
		columns = def.Columns
	}
	q := s.builder().Select(columns...).From(def.TableName)
	if !includeDeleted && def.QueryFilter != nil {
		q = q.Where(def.QueryFilter)
	}
	return q
}

// Find loads the entity of type T with the given id. Soft-deleted rows are
// not found unless WithDeleted is passed. If the entity is already tracked,
// the tracked instance is returned.
func Find[T entity.Entity](ctx context.Context, s *Session, id entity.ID, opts ...ReadOption) (T, error) {
	var zero T
	def, err := descriptorFor[T](s)
	if err != nil {
		return zero, err
	}

	var query Query
	for _, opt := range opts {
		opt(&query)
	}

	sqlStr, args, err := s.selectFrom(def, query.IncludeDeleted).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return zero, fmt.Errorf("build query: %w", err)
	}

	item, ok := def.New().(T)
	if !ok {
		return zero, apperror.NewInternal(fmt.Errorf("descriptor %s builds %T, not %T", def.Name, def.New(), zero))
	}
	if err := pgxscan.Get(ctx, s.engine.GetQuerier(ctx), item, sqlStr, args...); err != nil {
		if pgxscan.NotFound(err) {
			return zero, apperror.NewNotFound(def.Name, id.String())
		}
		return zero, postgres.MapError(err, def.TableName, "select")
	}

	if query.NoTracking {
		return item, nil
	}
	return resolveAs(s, item), nil
}

// List returns the entities of type T matching q.
func List[T entity.Entity](ctx context.Context, s *Session, q Query) ([]T, error) {
	def, err := descriptorFor[T](s)
	if err != nil {
		return nil, err
	}

	sel := s.selectFrom(def, q.IncludeDeleted)
	if q.Where != nil {
		sel = sel.Where(q.Where)
	}
	if len(q.OrderBy) > 0 {
		sel = sel.OrderBy(q.OrderBy...)
	}
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sel = sel.Offset(q.Offset)
	}

	sqlStr, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []T
	if err := pgxscan.Select(ctx, s.engine.GetQuerier(ctx), &items, sqlStr, args...); err != nil {
		return nil, postgres.MapError(err, def.TableName, "select")
	}

	if !q.NoTracking {
		for i, item := range items {
			items[i] = resolveAs(s, item)
		}
	}
	return items, nil
}

// Count returns the number of T rows matching q (paging is ignored).
func Count[T entity.Entity](ctx context.Context, s *Session, q Query) (int64, error) {
	def, err := descriptorFor[T](s)
	if err != nil {
		return 0, err
	}

	sel := s.selectFrom(def, q.IncludeDeleted, "COUNT(*)")
	if q.Where != nil {
		sel = sel.Where(q.Where)
	}

	sqlStr, args, err := sel.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := s.engine.GetQuerier(ctx).QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, def.TableName, "count")
	}
	return n, nil
}

// Load populates the named has-many relation of owner. Every call queries
// storage and merges the rows into the collection, so dependents committed
// since an earlier load are picked up and none is duplicated.
func (s *Session) Load(ctx context.Context, owner entity.Entity, relation string) error {
	def, err := s.describe(owner)
	if err != nil {
		return err
	}
	rel, ok := def.Relation(relation)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("%s has no relation %q", def.Name, relation))
	}

	return rel.Load(ctx, relationLoader{s: s}, owner)
}

// resolve returns the tracked instance with e's key, attaching e if none.
func (s *Session) resolve(e entity.Entity) entity.Entity {
	if en, ok := s.entries[keyOf(e)]; ok {
		return en.entity
	}
	if def, ok := s.registry.Of(e); ok {
		s.track(e, def, Unchanged)
	}
	return e
}

func resolveAs[T entity.Entity](s *Session, item T) T {
	if tracked, ok := s.resolve(item).(T); ok {
		return tracked
	}
	return item
}

// relationLoader adapts the session to metadata.Loader.
type relationLoader struct {
	s *Session
}

func (l relationLoader) Fetch(ctx context.Context, target, foreignKey string, ownerID entity.ID, dest any) error {
	def, ok := l.s.registry.Get(target)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("relation target %q is not registered", target))
	}

	sqlStr, args, err := l.s.selectFrom(def, false).
		Where(squirrel.Eq{foreignKey: ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, l.s.engine.GetQuerier(ctx), dest, sqlStr, args...); err != nil {
		return postgres.MapError(err, def.TableName, "select")
	}
	return nil
}

func (l relationLoader) Resolve(e entity.Entity) entity.Entity {
	return l.s.resolve(e)
}
