package postgres

import (
	"reflect"
	"sync"
)

type fieldInfo struct {
	index int
	dbTag string
}

// typeMetadata is cached per struct type.
type typeMetadata struct {
	fields          []fieldInfo
	embeddedIndices []int
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func metadataOf(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.Anonymous {
				meta.embeddedIndices = append(meta.embeddedIndices, i)
				continue
			}
			tag := field.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
		}
	}

	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

// StructToMap converts a struct to a map using "db" tags, flattening
// embedded structs. Pointer fields are kept as pointers.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	collect(rv, res, false)
	return res
}

// Snapshot is StructToMap with pointer fields dereferenced, so the result does
// not alias the entity. Nil pointers become untyped nil.
func Snapshot(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	collect(rv, res, true)
	return res
}

func collect(rv reflect.Value, out map[string]any, deref bool) {
	meta := metadataOf(rv.Type())
	for _, fi := range meta.fields {
		f := rv.Field(fi.index)
		if deref && f.Kind() == reflect.Ptr {
			if f.IsNil() {
				out[fi.dbTag] = nil
			} else {
				out[fi.dbTag] = f.Elem().Interface()
			}
			continue
		}
		out[fi.dbTag] = f.Interface()
	}
	for _, idx := range meta.embeddedIndices {
		f := rv.Field(idx)
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				continue
			}
			f = f.Elem()
		}
		if f.Kind() == reflect.Struct {
			collect(f, out, deref)
		}
	}
}

// ChangedColumns returns, in the order of columns, those whose value differs
// between two snapshots.
func ChangedColumns(columns []string, before, after map[string]any) []string {
	var changed []string
	for _, col := range columns {
		if !reflect.DeepEqual(before[col], after[col]) {
			changed = append(changed, col)
		}
	}
	return changed
}
