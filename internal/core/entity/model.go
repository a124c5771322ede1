package entity

import "time"

///////////////
// Identity  //
///////////////

// Identity holds the primary key.
type Identity struct {
	ID ID `db:"id" json:"id"`
}

// GetID implements Entity.
func (i *Identity) GetID() ID { return i.ID }

// SetID implements Entity.
func (i *Identity) SetID(v ID) { i.ID = v }

////////////////
// Versioning //
////////////////

// Versioning holds the optimistic lock counter (incremented on each update).
type Versioning struct {
	Version int `db:"version" json:"version"`
}

// GetVersion implements Versioned.
func (v *Versioning) GetVersion() int { return v.Version }

// SetVersion implements Versioned.
func (v *Versioning) SetVersion(n int) { v.Version = n }

////////////////
// Timestamps //
////////////////

// Timestamps is the embeddable implementation of Timestamped.
// Both fields are stamped by the session on commit.
type Timestamps struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (t *Timestamps) GetCreatedAt() time.Time  { return t.CreatedAt }
func (t *Timestamps) SetCreatedAt(v time.Time) { t.CreatedAt = v }
func (t *Timestamps) GetUpdatedAt() time.Time  { return t.UpdatedAt }
func (t *Timestamps) SetUpdatedAt(v time.Time) { t.UpdatedAt = v }

////////////////
// SoftDelete //
////////////////

// SoftDelete holds the deletion timestamp. It provides the column half of
// SoftDeletable; the embedding type supplies LoadRelations and OnSoftDelete.
type SoftDelete struct {
	// DeletedAt is nil while the entity is alive.
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

func (s *SoftDelete) GetDeletedAt() *time.Time  { return s.DeletedAt }
func (s *SoftDelete) SetDeletedAt(v *time.Time) { s.DeletedAt = v }

// IsDeleted returns true if the entity has been soft-deleted.
func (s *SoftDelete) IsDeleted() bool { return s.DeletedAt != nil }

///////////
// Model //
///////////

// Model is the common base for timestamped, soft-deletable entities.
type Model struct {
	Identity
	Versioning
	Timestamps
	SoftDelete
}

// NewModel creates a Model with a generated ID.
func NewModel() Model {
	return Model{
		Identity:   Identity{ID: NewID()},
		Versioning: Versioning{Version: 1},
	}
}
