package metadata

import (
	"context"
	"fmt"

	"softdeletes/internal/core/entity"
)

// Loader is what a relation needs from the session to populate itself.
type Loader interface {
	// Fetch selects the rows of target whose foreignKey equals ownerID into
	// dest (a pointer to a slice), applying target's query filter.
	Fetch(ctx context.Context, target, foreignKey string, ownerID entity.ID, dest any) error

	// Resolve returns the tracked instance with e's identity, attaching e when
	// nothing is tracked yet.
	Resolve(e entity.Entity) entity.Entity
}

// Relation is a has-many relation from an owner to dependent rows.
type Relation struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	ForeignKey string `json:"foreignKey"`

	load func(ctx context.Context, l Loader, owner entity.Entity) error
}

// Load populates the relation's collection on owner.
func (r Relation) Load(ctx context.Context, l Loader, owner entity.Entity) error {
	if r.load == nil {
		return fmt.Errorf("relation %s has no accessor", r.Name)
	}
	return r.load(ctx, l, owner)
}

// HasMany declares a relation from O to the C rows referencing it through
// foreignKey. field returns the owner's collection.
//
// Loaded rows are identity-resolved, and elements already present in the
// collection but not in storage (new dependents) are kept, so loading twice
// never duplicates an element.
func HasMany[O, C entity.Entity](name, target, foreignKey string, field func(O) *[]C) Relation {
	return Relation{
		Name:       name,
		Target:     target,
		ForeignKey: foreignKey,
		load: func(ctx context.Context, l Loader, owner entity.Entity) error {
			o, ok := owner.(O)
			if !ok {
				var zero O
				return fmt.Errorf("relation %s: owner %T is not %T", name, owner, zero)
			}

			var rows []C
			if err := l.Fetch(ctx, target, foreignKey, owner.GetID(), &rows); err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}

			dest := field(o)
			seen := make(map[entity.ID]struct{}, len(rows))
			merged := make([]C, 0, len(rows)+len(*dest))
			for _, row := range rows {
				item := row
				if resolved, ok := l.Resolve(row).(C); ok {
					item = resolved
				}
				if _, dup := seen[item.GetID()]; dup {
					continue
				}
				seen[item.GetID()] = struct{}{}
				merged = append(merged, item)
			}
			for _, existing := range *dest {
				if _, dup := seen[existing.GetID()]; dup {
					continue
				}
				seen[existing.GetID()] = struct{}{}
				merged = append(merged, existing)
			}
			*dest = merged
			return nil
		},
	}
}
