// Package metadata describes the entities known to the persistence session.
//
// Descriptors are registered once at startup, from a static list, and never
// change afterwards. Each descriptor carries the table mapping, the capability
// set the entity type declares, its has-many relations and the query filter
// applied to ordinary reads.
package metadata

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"softdeletes/internal/core/entity"
)

// Capability is one of the optional behaviours an entity type declares.
type Capability uint8

const (
	CapTimestamps Capability = 1 << iota
	CapSoftDelete
	CapVersion
)

// Names returns the capability names contained in c.
func (c Capability) Names() []string {
	var names []string
	if c&CapTimestamps != 0 {
		names = append(names, "timestamps")
	}
	if c&CapSoftDelete != 0 {
		names = append(names, "softDelete")
	}
	if c&CapVersion != 0 {
		names = append(names, "version")
	}
	return names
}

// FieldType defines the data type of a field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeReference FieldType = "reference"
)

// FieldDef describes a serialized field.
type FieldDef struct {
	Name          string    `json:"name"`
	Type          FieldType `json:"type"`
	ReferenceType string    `json:"referenceType,omitempty"`
	ReadOnly      bool      `json:"readOnly,omitempty"`
	Nullable      bool      `json:"nullable,omitempty"`
}

// EntityDef describes a persisted entity type.
type EntityDef struct {
	Name      string
	TableName string

	// Columns are the db-tagged columns in declaration order.
	Columns []string

	// Fields describe the JSON shape (for the meta endpoint).
	Fields []FieldDef

	Capabilities Capability
	Relations    []Relation

	// QueryFilter is applied to every ordinary read of this entity; nil means none.
	QueryFilter squirrel.Sqlizer

	newFn   func() entity.Entity
	columns map[string]struct{}
}

// Define builds the descriptor of T. newFn must return a fresh zero entity.
func Define[T entity.Entity](name string, newFn func() T) *EntityDef {
	proto := newFn()
	def := &EntityDef{
		Name:         name,
		TableName:    proto.TableName(),
		Columns:      Columns(proto),
		Fields:       Fields(proto),
		Capabilities: capabilitiesOf(proto),
		newFn:        func() entity.Entity { return newFn() },
	}
	def.columns = make(map[string]struct{}, len(def.Columns))
	for _, col := range def.Columns {
		def.columns[col] = struct{}{}
	}
	return def
}

// WithRelations appends has-many relations and returns def.
func (d *EntityDef) WithRelations(rels ...Relation) *EntityDef {
	d.Relations = append(d.Relations, rels...)
	return d
}

// New returns a fresh zero entity of the described type.
func (d *EntityDef) New() entity.Entity {
	return d.newFn()
}

// Has reports whether the entity type declares capability c.
func (d *EntityDef) Has(c Capability) bool {
	return d.Capabilities&c == c
}

// HasColumn reports whether col is mapped.
func (d *EntityDef) HasColumn(col string) bool {
	_, ok := d.columns[col]
	return ok
}

// Relation returns the relation with the given name.
func (d *EntityDef) Relation(name string) (Relation, bool) {
	for _, rel := range d.Relations {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relation{}, false
}

// QualifiedColumns returns the columns prefixed with the table name.
func (d *EntityDef) QualifiedColumns() []string {
	cols := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		cols[i] = d.TableName + "." + col
	}
	return cols
}

func capabilitiesOf(e entity.Entity) Capability {
	var c Capability
	if _, ok := e.(entity.Timestamped); ok {
		c |= CapTimestamps
	}
	if _, ok := e.(entity.SoftDeletable); ok {
		c |= CapSoftDelete
	}
	if _, ok := e.(entity.Versioned); ok {
		c |= CapVersion
	}
	return c
}

// Registry stores entity definitions in registration order.
// Parents must be registered before their dependents: the session inserts in
// registration order and deletes in reverse.
type Registry struct {
	byName  map[string]*EntityDef
	byTable map[string]*EntityDef
	order   []*EntityDef
}

func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*EntityDef),
		byTable: make(map[string]*EntityDef),
	}
}

// Register adds definitions. Names and tables must be unique.
func (r *Registry) Register(defs ...*EntityDef) error {
	for _, def := range defs {
		if _, ok := r.byName[def.Name]; ok {
			return fmt.Errorf("entity %q already registered", def.Name)
		}
		if other, ok := r.byTable[def.TableName]; ok {
			return fmt.Errorf("table %q already mapped to entity %q", def.TableName, other.Name)
		}
		r.byName[def.Name] = def
		r.byTable[def.TableName] = def
		r.order = append(r.order, def)
	}
	return nil
}

// MustRegister is Register that panics on error. Use at startup only.
func (r *Registry) MustRegister(defs ...*EntityDef) {
	if err := r.Register(defs...); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (*EntityDef, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) ByTable(table string) (*EntityDef, bool) {
	d, ok := r.byTable[table]
	return d, ok
}

// Of returns the descriptor of e's type.
func (r *Registry) Of(e entity.Entity) (*EntityDef, bool) {
	return r.ByTable(e.TableName())
}

// List returns all definitions in registration order.
func (r *Registry) List() []*EntityDef {
	list := make([]*EntityDef, len(r.order))
	copy(list, r.order)
	return list
}

// Position returns the registration index of table, or -1.
func (r *Registry) Position(table string) int {
	for i, def := range r.order {
		if def.TableName == table {
			return i
		}
	}
	return -1
}

// Validate checks that every relation points to a registered entity whose
// table maps the foreign key column.
func (r *Registry) Validate() error {
	for _, def := range r.order {
		for _, rel := range def.Relations {
			target, ok := r.byName[rel.Target]
			if !ok {
				return fmt.Errorf("relation %s.%s: unknown target %q", def.Name, rel.Name, rel.Target)
			}
			if !target.HasColumn(rel.ForeignKey) {
				return fmt.Errorf("relation %s.%s: %s has no column %q", def.Name, rel.Name, target.TableName, rel.ForeignKey)
			}
		}
	}
	return nil
}
