package entity

import "github.com/google/uuid"

// ID is the primary key type of every entity.
type ID = uuid.UUID

// NilID is the zero-value ID.
var NilID = uuid.Nil

// NewID generates a new UUIDv7 (time-ordered UUID).
// Time ordering keeps B-tree inserts local and lets rows sort by creation.
func NewID() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// ParseID converts string to ID with validation.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// IsNilID checks if the ID is the zero value.
func IsNilID(v ID) bool {
	return v == uuid.Nil
}
