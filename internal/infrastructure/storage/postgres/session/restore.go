package session

import (
	"context"
	"fmt"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
)

// Restore clears DeletedAt of e and immediately commits that change alone.
// It returns the number of rows written. Dependents are not restored.
func (s *Session) Restore(ctx context.Context, e entity.Entity) (int64, error) {
	return s.RestoreRange(ctx, []entity.Entity{e})
}

// RestoreRange restores entities in one commit. Entities that are not
// soft-deleted are left alone and do not count.
//
// Only the restored entries are written; other pending changes of the
// session stay pending.
func (s *Session) RestoreRange(ctx context.Context, entities []entity.Entity) (int64, error) {
	targets := make([]*entry, 0, len(entities))
	for _, e := range entities {
		def, err := s.describe(e)
		if err != nil {
			return 0, err
		}
		sd, ok := e.(entity.SoftDeletable)
		if !ok {
			return 0, apperror.NewValidation(fmt.Sprintf("%s is not soft-deletable", def.Name)).
				WithDetail("entity", def.Name)
		}

		en, err := s.lookup(e)
		if err != nil {
			return 0, err
		}
		if en == nil {
			// Snapshot first, so clearing deleted_at is seen as a change.
			en = s.track(e, def, Unchanged)
		}
		if en.state == Deleted {
			en.state = Unchanged
			en.mode = entity.Soft
		}
		if !sd.IsDeleted() {
			continue
		}

		sd.SetDeletedAt(nil)
		en.restoring = true
		targets = append(targets, en)
	}

	s.allowRestore = true
	return s.commit(ctx, targets)
}
