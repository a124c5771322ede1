package metadata

import (
	"context"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softdeletes/internal/core/entity"
)

type testFolder struct {
	entity.Model
	Title string      `db:"title" json:"title"`
	Notes []*testNote `db:"-" json:"notes,omitempty"`
}

func (f *testFolder) TableName() string { return "folders" }

func (f *testFolder) LoadRelations(ctx context.Context, uow entity.UnitOfWork) error {
	return uow.Load(ctx, f, "notes")
}

func (f *testFolder) OnSoftDelete(ctx context.Context, uow entity.UnitOfWork) error {
	return uow.Remove(ctx, entity.Entities(f.Notes)...)
}

type testNote struct {
	entity.Identity
	entity.Timestamps
	FolderID entity.ID `db:"folder_id" json:"folderId"`
	Body     string    `db:"body" json:"body"`
}

func (n *testNote) TableName() string { return "notes" }

type testTag struct {
	entity.Identity
	Label string `db:"label" json:"label"`
}

func (t *testTag) TableName() string { return "tags" }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(
		Define("folder", func() *testFolder { return &testFolder{} }).WithRelations(
			HasMany("notes", "note", "folder_id", func(f *testFolder) *[]*testNote { return &f.Notes }),
		),
		Define("note", func() *testNote { return &testNote{} }),
		Define("tag", func() *testTag { return &testTag{} }),
	))
	return r
}

func TestDefine_Capabilities(t *testing.T) {
	r := newTestRegistry(t)

	folder, ok := r.Get("folder")
	require.True(t, ok)
	assert.True(t, folder.Has(CapSoftDelete))
	assert.True(t, folder.Has(CapTimestamps))
	assert.True(t, folder.Has(CapVersion))
	assert.Equal(t, []string{"timestamps", "softDelete", "version"}, folder.Capabilities.Names())

	note, _ := r.Get("note")
	assert.False(t, note.Has(CapSoftDelete))
	assert.True(t, note.Has(CapTimestamps))

	tag, _ := r.Get("tag")
	assert.Empty(t, tag.Capabilities.Names())
}

func TestDefine_Columns(t *testing.T) {
	r := newTestRegistry(t)

	folder, _ := r.Get("folder")
	assert.Equal(t, "folders", folder.TableName)
	assert.Equal(t,
		[]string{"id", "version", "created_at", "updated_at", "deleted_at", "title"},
		folder.Columns,
	)
	assert.True(t, folder.HasColumn("deleted_at"))
	assert.False(t, folder.HasColumn("notes"))
	assert.Equal(t, "folders.title", folder.QualifiedColumns()[5])
}

func TestFields_SkipsCollections(t *testing.T) {
	fields := Fields(&testFolder{})

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.NotContains(t, names, "notes")
	assert.Contains(t, names, "deletedAt")

	for _, f := range fields {
		if f.Name == "deletedAt" {
			assert.Equal(t, TypeDate, f.Type)
			assert.True(t, f.Nullable)
			assert.True(t, f.ReadOnly)
		}
	}

	noteFields := Fields(&testNote{})
	for _, f := range noteFields {
		if f.Name == "folderId" {
			assert.Equal(t, TypeReference, f.Type)
			assert.Equal(t, "folder", f.ReferenceType)
		}
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := newTestRegistry(t)

	def, ok := r.ByTable("notes")
	require.True(t, ok)
	assert.Equal(t, "note", def.Name)

	def, ok = r.Of(&testTag{})
	require.True(t, ok)
	assert.Equal(t, "tag", def.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 0, r.Position("folders"))
	assert.Equal(t, 2, r.Position("tags"))
	assert.Equal(t, -1, r.Position("missing"))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "folder", list[0].Name)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(Define("tag", func() *testTag { return &testTag{} }))
	assert.Error(t, err)

	err = r.Register(Define("label", func() *testTag { return &testTag{} }))
	assert.ErrorContains(t, err, "tags")
}

func TestRegistry_Validate(t *testing.T) {
	r := newTestRegistry(t)
	assert.NoError(t, r.Validate())

	bad := NewRegistry()
	bad.MustRegister(
		Define("folder", func() *testFolder { return &testFolder{} }).WithRelations(
			HasMany("notes", "note", "parent_id", func(f *testFolder) *[]*testNote { return &f.Notes }),
		),
		Define("note", func() *testNote { return &testNote{} }),
	)
	assert.ErrorContains(t, bad.Validate(), "parent_id")

	orphan := NewRegistry()
	orphan.MustRegister(
		Define("folder", func() *testFolder { return &testFolder{} }).WithRelations(
			HasMany("notes", "note", "folder_id", func(f *testFolder) *[]*testNote { return &f.Notes }),
		),
	)
	assert.ErrorContains(t, orphan.Validate(), "unknown target")
}

func TestInstallSoftDeleteFilter(t *testing.T) {
	r := newTestRegistry(t)

	n := InstallSoftDeleteFilter(r)
	assert.Equal(t, 1, n)

	folder, _ := r.Get("folder")
	sql, args, err := squirrel.Select("id").From(folder.TableName).
		Where(folder.QueryFilter).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	require.NoError(t, err)

	wantSQL := "SELECT id FROM folders WHERE folders.deleted_at IS NULL"
	if sql != wantSQL {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", wantSQL, sql)
	}
	assert.Empty(t, args)

	note, _ := r.Get("note")
	assert.Nil(t, note.QueryFilter)
	tag, _ := r.Get("tag")
	assert.Nil(t, tag.QueryFilter)
}

func TestAddQueryFilter_ComposesWithAnd(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.AddQueryFilter("folder", squirrel.Eq{"folders.title": "inbox"}))
	InstallSoftDeleteFilter(r)

	folder, _ := r.Get("folder")
	sql, args, err := squirrel.Select("id").From("folders").
		Where(folder.QueryFilter).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	require.NoError(t, err)

	wantSQL := "SELECT id FROM folders WHERE (folders.title = $1 AND folders.deleted_at IS NULL)"
	if sql != wantSQL {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", wantSQL, sql)
	}
	assert.Equal(t, []any{"inbox"}, args)

	assert.Error(t, r.AddQueryFilter("missing", squirrel.Eq{"x": 1}))
}

type stubLoader struct {
	rows    []*testNote
	tracked map[entity.ID]entity.Entity
	fetched []string
}

func (s *stubLoader) Fetch(_ context.Context, target, foreignKey string, ownerID entity.ID, dest any) error {
	s.fetched = append(s.fetched, target+"."+foreignKey+"="+ownerID.String())
	*(dest.(*[]*testNote)) = append([]*testNote(nil), s.rows...)
	return nil
}

func (s *stubLoader) Resolve(e entity.Entity) entity.Entity {
	if tracked, ok := s.tracked[e.GetID()]; ok {
		return tracked
	}
	s.tracked[e.GetID()] = e
	return e
}

func TestHasMany_LoadResolvesAndMerges(t *testing.T) {
	r := newTestRegistry(t)
	folderDef, _ := r.Get("folder")
	rel, ok := folderDef.Relation("notes")
	require.True(t, ok)

	folder := &testFolder{Model: entity.NewModel()}
	stored := &testNote{Identity: entity.Identity{ID: entity.NewID()}, FolderID: folder.ID}
	trackedCopy := &testNote{Identity: entity.Identity{ID: stored.ID}, FolderID: folder.ID, Body: "tracked"}
	pending := &testNote{Identity: entity.Identity{ID: entity.NewID()}, FolderID: folder.ID}
	folder.Notes = []*testNote{pending}

	loader := &stubLoader{
		rows:    []*testNote{stored},
		tracked: map[entity.ID]entity.Entity{stored.ID: trackedCopy},
	}

	require.NoError(t, rel.Load(context.Background(), loader, folder))
	require.Len(t, folder.Notes, 2)
	assert.Same(t, trackedCopy, folder.Notes[0])
	assert.Same(t, pending, folder.Notes[1])
	assert.Equal(t, []string{"note.folder_id=" + folder.ID.String()}, loader.fetched)

	require.NoError(t, rel.Load(context.Background(), loader, folder))
	assert.Len(t, folder.Notes, 2)
}

func TestHasMany_WrongOwner(t *testing.T) {
	rel := HasMany("notes", "note", "folder_id", func(f *testFolder) *[]*testNote { return &f.Notes })
	err := rel.Load(context.Background(), &stubLoader{tracked: map[entity.ID]entity.Entity{}}, &testTag{})
	assert.ErrorContains(t, err, "owner")
}
