package pgtest

import (
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Rows is a pgx.Rows over in-memory values.
type Rows struct {
	cols   []string
	data   [][]any
	pos    int
	closed bool
	err    error
}

var _ pgx.Rows = (*Rows)(nil)

func (r *Rows) Close()     { r.closed = true }
func (r *Rows) Err() error { return r.err }

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("SELECT " + fmt.Sprint(len(r.data)))
}

func (r *Rows) Conn() *pgx.Conn { return nil }

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *Rows) current() []any {
	return r.data[r.pos-1]
}

func (r *Rows) Scan(dest ...any) error {
	values := r.current()
	if len(dest) != len(values) {
		r.err = fmt.Errorf("pgtest: %d destinations for %d columns", len(dest), len(values))
		return r.err
	}
	for i, d := range dest {
		if err := assign(d, values[i]); err != nil {
			r.err = fmt.Errorf("pgtest: column %s: %w", r.cols[i], err)
			return r.err
		}
	}
	return nil
}

func (r *Rows) Values() ([]any, error) {
	return r.current(), nil
}

func (r *Rows) RawValues() [][]byte {
	return nil
}

// row is a pgx.Row over the first row of Rows.
type row struct {
	rows pgx.Rows
	err  error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	target := dv.Elem()

	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	vv := reflect.ValueOf(value)
	switch {
	case vv.Type().AssignableTo(target.Type()):
		target.Set(vv)
	case target.Kind() == reflect.Ptr && vv.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(vv)
		target.Set(p)
	case vv.Kind() == reflect.Ptr && !vv.IsNil() && vv.Elem().Type().AssignableTo(target.Type()):
		target.Set(vv.Elem())
	case vv.Kind() == reflect.Ptr && vv.IsNil():
		target.Set(reflect.Zero(target.Type()))
	case vv.Type().ConvertibleTo(target.Type()):
		target.Set(vv.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, target.Type())
	}
	return nil
}
