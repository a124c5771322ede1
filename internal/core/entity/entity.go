// Package entity provides the capability markers every persisted type declares.
//
// An entity is any type with a table and an ID. On top of that, a type opts into
// behaviour of the persistence session by implementing small capability
// interfaces: Timestamped, SoftDeletable and Versioned. The session checks each
// capability explicitly and skips entities that do not declare it.
package entity

import (
	"context"
	"time"
)

// Entity is the base interface for all storable types.
type Entity interface {
	// TableName returns the table the entity is persisted in.
	TableName() string

	// GetID returns the primary key.
	GetID() ID

	// SetID assigns the primary key (used by the session for new entities).
	SetID(ID)
}

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// Timestamped entities carry created_at/updated_at columns maintained by the session.
type Timestamped interface {
	GetCreatedAt() time.Time
	SetCreatedAt(time.Time)
	GetUpdatedAt() time.Time
	SetUpdatedAt(time.Time)
}

// Versioned entities use optimistic locking on the version column.
type Versioned interface {
	GetVersion() int
	SetVersion(int)
}

// UnitOfWork is the part of the persistence session cascade hooks talk to.
type UnitOfWork interface {
	// Remove marks entities for (soft) removal. Calls made from inside a
	// cascade hook are queued and processed by the outermost Remove.
	Remove(ctx context.Context, entities ...Entity) error

	// Load populates a registered relation of owner. Loading the same
	// relation twice is a no-op.
	Load(ctx context.Context, owner Entity, relation string) error
}

// SoftDeletable entities are marked with deleted_at instead of being removed.
//
// LoadRelations must populate every dependent collection OnSoftDelete needs,
// and OnSoftDelete must remove those dependents through uow, never directly
// on storage. Leaf entities implement both as no-ops.
type SoftDeletable interface {
	GetDeletedAt() *time.Time
	SetDeletedAt(*time.Time)
	IsDeleted() bool

	LoadRelations(ctx context.Context, uow UnitOfWork) error
	OnSoftDelete(ctx context.Context, uow UnitOfWork) error
}

// RemoveMode is the removal intent passed to the session with each remove call.
type RemoveMode int

const (
	// Soft converts the removal into a deleted_at update for SoftDeletable
	// entities and cascades through their hooks.
	Soft RemoveMode = iota

	// Force always deletes the row physically. Hooks are not run; dependents
	// are left to the database's referential rules.
	Force
)

func (m RemoveMode) String() string {
	switch m {
	case Soft:
		return "soft"
	case Force:
		return "force"
	}
	return "unknown"
}

// Entities converts a typed slice into a slice of Entity.
func Entities[T Entity](items []T) []Entity {
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
