package session

import (
	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/metadata"
)

// EntityState is the tracking state of an entity; it decides the write a
// commit emits for it.
type EntityState int

const (
	Detached EntityState = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Detached:
		return "detached"
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

type key struct {
	table string
	id    entity.ID
}

func keyOf(e entity.Entity) key {
	return key{table: e.TableName(), id: e.GetID()}
}

// entry is the tracker record of one entity.
// state is only ever Unchanged, Added or Deleted; Modified is derived from the
// snapshot (see currentState).
type entry struct {
	entity entity.Entity
	def    *metadata.EntityDef
	state  EntityState
	mode   entity.RemoveMode
	seq    int

	// original holds the column values as last read or written.
	original map[string]any

	// restoring marks entries written by Restore.
	restoring bool
}

func (s *Session) track(e entity.Entity, def *metadata.EntityDef, state EntityState) *entry {
	s.seq++
	en := &entry{
		entity: e,
		def:    def,
		state:  state,
		seq:    s.seq,
	}
	if state != Added {
		en.original = postgres.Snapshot(e)
	}
	s.entries[keyOf(e)] = en
	s.order = append(s.order, en)
	return en
}

func (s *Session) detach(en *entry) {
	k := keyOf(en.entity)
	if cur, ok := s.entries[k]; ok && cur == en {
		delete(s.entries, k)
	}
	for i, other := range s.order {
		if other == en {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// accept makes the current values the new baseline.
func (en *entry) accept() {
	en.state = Unchanged
	en.mode = entity.Soft
	en.restoring = false
	en.original = postgres.Snapshot(en.entity)
}

func (en *entry) currentState() EntityState {
	if en.state != Unchanged {
		return en.state
	}
	if len(en.changedColumns()) > 0 {
		return Modified
	}
	return Unchanged
}

// Columns never written through SET.
var keyColumns = map[string]bool{"id": true, "version": true}

func (en *entry) changedColumns() []string {
	current := postgres.Snapshot(en.entity)
	var changed []string
	for _, col := range postgres.ChangedColumns(en.def.Columns, en.original, current) {
		if !keyColumns[col] {
			changed = append(changed, col)
		}
	}
	return changed
}
