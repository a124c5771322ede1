package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"softdeletes/internal/core/entity"
)

type mockNote struct {
	entity.Model
	Title string  `db:"title"`
	Notes *string `db:"notes"`
	Tags  []string
	Skip  int `db:"-"`
}

func (n *mockNote) TableName() string { return "notes" }

func TestStructToMap_FlattensEmbedded(t *testing.T) {
	now := time.Now().UTC()
	note := &mockNote{Model: entity.NewModel(), Title: "hello", Skip: 7}
	note.CreatedAt = now
	deletedAt := now
	note.DeletedAt = &deletedAt

	m := StructToMap(note)

	assert.Equal(t, note.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Same(t, note.DeletedAt, m["deleted_at"])
	assert.Equal(t, "hello", m["title"])
	assert.NotContains(t, m, "Skip")
	assert.NotContains(t, m, "Tags")
	assert.Len(t, m, 7)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap((*mockNote)(nil)))
}

func TestSnapshot_DereferencesPointers(t *testing.T) {
	now := time.Now().UTC()
	text := "n"
	note := &mockNote{Model: entity.NewModel(), Notes: &text}
	deletedAt := now
	note.DeletedAt = &deletedAt

	snap := Snapshot(note)
	assert.Equal(t, now, snap["deleted_at"])
	assert.Equal(t, "n", snap["notes"])

	// Later mutation through the entity does not change the snapshot.
	later := now.Add(time.Hour)
	*note.DeletedAt = later
	assert.Equal(t, now, snap["deleted_at"])

	note.Notes = nil
	assert.Nil(t, Snapshot(note)["notes"])
}

func TestChangedColumns(t *testing.T) {
	now := time.Now().UTC()
	note := &mockNote{Model: entity.NewModel(), Title: "a"}
	before := Snapshot(note)

	note.Title = "b"
	deletedAt := now
	note.DeletedAt = &deletedAt
	after := Snapshot(note)

	cols := []string{"id", "version", "created_at", "updated_at", "deleted_at", "title", "notes"}
	assert.Equal(t, []string{"deleted_at", "title"}, ChangedColumns(cols, before, after))
	assert.Empty(t, ChangedColumns(cols, before, before))
}
