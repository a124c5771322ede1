package domain

import (
	"context"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/pkg/logger"
)

// Entity is what Service manages: a persisted, self-validating type.
type Entity interface {
	entity.Entity
	entity.Validatable
}

// Service provides CRUD, soft delete and restore for one entity type.
// It works on the session carried by the context (see session.WithSession).
type Service[T Entity] struct {
	hooks *HookRegistry[T]

	// entityName for error messages
	entityName   string
	searchColumn string
}

// ServiceConfig configures the service.
type ServiceConfig struct {
	EntityName string

	// SearchColumn is matched by ListFilter.Search; empty disables search.
	SearchColumn string
}

// NewService creates a new entity service.
func NewService[T Entity](cfg ServiceConfig) *Service[T] {
	return &Service[T]{
		hooks:        NewHookRegistry[T](),
		entityName:   cfg.EntityName,
		searchColumn: cfg.SearchColumn,
	}
}

// Hooks returns the hook registry for external registration.
func (s *Service[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

// EntityName returns the registered entity name.
func (s *Service[T]) EntityName() string {
	return s.entityName
}

func (s *Service[T]) normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func (s *Service[T]) normalizeGetErr(err error, id entity.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.entityName, id.String())
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", s.entityName).WithDetail("id", id.String())
}

func (s *Service[T]) runAfter(ctx context.Context, event HookEvent, e T) {
	// The change is committed; a failing after-hook is only reported.
	if err := s.hooks.Run(ctx, event, e); err != nil {
		logger.Warn(ctx, "after hook failed", "entity", s.entityName, "event", event, "error", err)
	}
}

// Create validates and inserts e.
func (s *Service[T]) Create(ctx context.Context, e T) error {
	if err := e.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}
	if err := s.hooks.Run(ctx, BeforeCreate, e); err != nil {
		return err
	}

	sess := session.MustFromContext(ctx)
	if err := sess.Add(e); err != nil {
		return err
	}
	if _, err := sess.Commit(ctx); err != nil {
		sess.Detach(e)
		return err
	}

	s.runAfter(ctx, AfterCreate, e)
	return nil
}

// Get retrieves the entity by ID. Soft-deleted entities are not found unless
// includeDeleted is set.
func (s *Service[T]) Get(ctx context.Context, id entity.ID, includeDeleted bool) (T, error) {
	var opts []session.ReadOption
	if includeDeleted {
		opts = append(opts, session.WithDeleted())
	}
	e, err := session.Find[T](ctx, session.MustFromContext(ctx), id, opts...)
	if err != nil {
		return e, s.normalizeGetErr(err, id)
	}
	return e, nil
}

// List retrieves entities with filtering and pagination.
func (s *Service[T]) List(ctx context.Context, filter ListFilter) (ListResult[T], error) {
	sess := session.MustFromContext(ctx)
	def, ok := sess.Registry().Get(s.entityName)
	if !ok {
		return ListResult[T]{}, apperror.NewMisconfigured(s.entityName, "entity is not registered")
	}

	q := filter.query(s.searchColumn, def.HasColumn)
	q.NoTracking = true

	total, err := session.Count[T](ctx, sess, q)
	if err != nil {
		return ListResult[T]{}, err
	}
	items, err := session.List[T](ctx, sess, q)
	if err != nil {
		return ListResult[T]{}, err
	}
	if items == nil {
		items = []T{}
	}

	return ListResult[T]{
		Items:      items,
		TotalCount: total,
		Limit:      int(q.Limit),
		Offset:     int(q.Offset),
	}, nil
}

// Update loads the entity, applies apply to it and commits the result.
// A positive version must match the stored one.
func (s *Service[T]) Update(ctx context.Context, id entity.ID, version int, apply func(T) error) (T, error) {
	sess := session.MustFromContext(ctx)
	e, err := s.Get(ctx, id, false)
	if err != nil {
		return e, err
	}

	if v, ok := any(e).(entity.Versioned); ok && version > 0 && v.GetVersion() != version {
		return e, apperror.NewConcurrentModification(s.entityName, id.String())
	}

	if err := apply(e); err != nil {
		return e, s.normalizeValidationErr(err)
	}
	// The ID is not updatable.
	e.SetID(id)

	if err := e.Validate(ctx); err != nil {
		return e, s.normalizeValidationErr(err)
	}
	if err := s.hooks.Run(ctx, BeforeUpdate, e); err != nil {
		return e, err
	}

	if _, err := sess.Commit(ctx); err != nil {
		return e, err
	}

	s.runAfter(ctx, AfterUpdate, e)
	return e, nil
}

// Delete removes the entity and returns the number of rows written.
//
// With entity.Soft the entity and every dependent its hooks reach are marked
// deleted; an entity that is already soft-deleted is not found. With
// entity.Force the row is deleted physically, soft-deleted or not.
func (s *Service[T]) Delete(ctx context.Context, id entity.ID, mode entity.RemoveMode) (int64, error) {
	sess := session.MustFromContext(ctx)
	e, err := s.Get(ctx, id, mode == entity.Force)
	if err != nil {
		return 0, err
	}

	if err := s.hooks.Run(ctx, BeforeDelete, e); err != nil {
		return 0, err
	}

	if err := sess.RemoveWithMode(ctx, mode, e); err != nil {
		sess.Reset()
		return 0, err
	}
	n, err := sess.Commit(ctx)
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "entity deleted", "entity", s.entityName, "id", id, "mode", mode, "rows", n)
	s.runAfter(ctx, AfterDelete, e)
	return n, nil
}

// Restore clears the deletion mark of a soft-deleted entity. Its dependents
// stay deleted.
func (s *Service[T]) Restore(ctx context.Context, id entity.ID) (T, error) {
	sess := session.MustFromContext(ctx)
	e, err := s.Get(ctx, id, true)
	if err != nil {
		return e, err
	}

	sd, ok := any(e).(entity.SoftDeletable)
	if !ok {
		return e, apperror.NewValidation(s.entityName+" is not soft-deletable").
			WithDetail("entity", s.entityName)
	}
	if !sd.IsDeleted() {
		return e, apperror.NewNotDeleted(s.entityName, id.String())
	}

	if err := s.hooks.Run(ctx, BeforeRestore, e); err != nil {
		return e, err
	}
	if _, err := sess.Restore(ctx, e); err != nil {
		return e, err
	}

	s.runAfter(ctx, AfterRestore, e)
	return e, nil
}
