package metadata

import (
	"fmt"

	"github.com/Masterminds/squirrel"
)

// AddQueryFilter attaches pred to the named entity. An existing filter is kept
// and combined with pred using AND.
func (r *Registry) AddQueryFilter(name string, pred squirrel.Sqlizer) error {
	def, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("add query filter: unknown entity %q", name)
	}
	def.QueryFilter = andFilter(def.QueryFilter, pred)
	return nil
}

// SetQueryFilterOnAll runs one pass over the registered descriptors and
// attaches the predicate built by pred to every entity declaring cap,
// ANDed with any filter already present. Returns the number of entities touched.
func (r *Registry) SetQueryFilterOnAll(cap Capability, pred func(def *EntityDef) squirrel.Sqlizer) int {
	n := 0
	for _, def := range r.order {
		if !def.Has(cap) {
			continue
		}
		def.QueryFilter = andFilter(def.QueryFilter, pred(def))
		n++
	}
	return n
}

// NotDeleted is the soft-delete predicate: deleted_at IS NULL.
func NotDeleted(def *EntityDef) squirrel.Sqlizer {
	return squirrel.Eq{def.TableName + ".deleted_at": nil}
}

// InstallSoftDeleteFilter hides soft-deleted rows of every SoftDeletable entity
// from ordinary reads. Call once, after all entities are registered.
func InstallSoftDeleteFilter(r *Registry) int {
	return r.SetQueryFilterOnAll(CapSoftDelete, NotDeleted)
}

func andFilter(existing, next squirrel.Sqlizer) squirrel.Sqlizer {
	switch {
	case next == nil:
		return existing
	case existing == nil:
		return next
	}
	return squirrel.And{existing, next}
}
