package session

import (
	"context"
	"fmt"

	"softdeletes/internal/core/entity"
)

type removal struct {
	entity entity.Entity
	mode   entity.RemoveMode
}

// Remove marks entities for removal with soft intent.
//
// Entities that are not SoftDeletable are physically deleted on commit.
// For SoftDeletable entities the entity's LoadRelations and OnSoftDelete hooks
// run before Remove returns, so every dependent the hooks remove is tracked by
// the time Commit converts the removals into deleted_at updates.
//
// Calls made from inside a hook are queued and processed by the outermost
// call, depth-first. Each entity is visited at most once per walk.
func (s *Session) Remove(ctx context.Context, entities ...entity.Entity) error {
	return s.RemoveWithMode(ctx, entity.Soft, entities...)
}

// RemoveRange is Remove over a slice.
func (s *Session) RemoveRange(ctx context.Context, entities []entity.Entity) error {
	return s.RemoveWithMode(ctx, entity.Soft, entities...)
}

// ForceRemove marks entities for physical removal. Hooks are not run.
func (s *Session) ForceRemove(ctx context.Context, entities ...entity.Entity) error {
	return s.RemoveWithMode(ctx, entity.Force, entities...)
}

// ForceRemoveRange is ForceRemove over a slice.
func (s *Session) ForceRemoveRange(ctx context.Context, entities []entity.Entity) error {
	return s.RemoveWithMode(ctx, entity.Force, entities...)
}

// RemoveWithMode marks entities for removal with an explicit intent.
//
// If a hook fails the walk stops and the error is returned. Tracker changes
// made before the failure are kept in memory, uncommitted; discard the session.
func (s *Session) RemoveWithMode(ctx context.Context, mode entity.RemoveMode, entities ...entity.Entity) error {
	// Pushed in reverse so the first entity is processed first.
	for i := len(entities) - 1; i >= 0; i-- {
		s.pending = append(s.pending, removal{entity: entities[i], mode: mode})
	}
	if s.walking {
		return nil
	}

	s.walking = true
	s.visited = make(map[key]struct{})
	defer func() {
		s.walking = false
		s.pending = nil
		s.visited = nil
	}()

	for len(s.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := s.pending[len(s.pending)-1]
		s.pending = s.pending[:len(s.pending)-1]
		if err := s.removeOne(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) removeOne(ctx context.Context, r removal) error {
	e := r.entity
	def, err := s.describe(e)
	if err != nil {
		return err
	}

	k := keyOf(e)
	if _, seen := s.visited[k]; seen {
		return nil
	}
	s.visited[k] = struct{}{}

	en, err := s.lookup(e)
	if err != nil {
		return err
	}

	switch {
	case en == nil:
		en = s.track(e, def, Unchanged)
	case en.state == Added:
		// Never written: nothing to delete, but in-memory dependents still cascade.
		err := s.cascade(ctx, e, r.mode)
		s.detach(en)
		return err
	case en.state == Deleted:
		// A force intent is never downgraded, and a soft removal already cascaded.
		if r.mode == entity.Force {
			en.mode = entity.Force
		}
		return nil
	case r.mode == entity.Soft && isSoftDeleted(e):
		// Stored as deleted already; its dependents went with it.
		return nil
	}

	en.state = Deleted
	en.mode = r.mode
	return s.cascade(ctx, e, r.mode)
}

func (s *Session) cascade(ctx context.Context, e entity.Entity, mode entity.RemoveMode) error {
	sd, ok := e.(entity.SoftDeletable)
	if !ok || mode == entity.Force {
		return nil
	}

	s.log.WithContext(ctx).Debugw("soft delete cascade", "table", e.TableName(), "id", e.GetID())

	if err := sd.LoadRelations(ctx, s); err != nil {
		return fmt.Errorf("load relations of %s %s: %w", e.TableName(), e.GetID(), err)
	}
	if err := sd.OnSoftDelete(ctx, s); err != nil {
		return fmt.Errorf("soft delete hook of %s %s: %w", e.TableName(), e.GetID(), err)
	}
	return nil
}

func isSoftDeleted(e entity.Entity) bool {
	sd, ok := e.(entity.SoftDeletable)
	return ok && sd.IsDeleted()
}
