package metadata

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"softdeletes/internal/core/entity"
)

var (
	idType   = reflect.TypeOf(entity.ID{})
	timeType = reflect.TypeOf(time.Time{})
)

// Columns returns the db-tagged columns of v's struct type, flattening
// embedded structs in declaration order.
func Columns(v any) []string {
	return columnsOf(reflect.TypeOf(v))
}

func columnsOf(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			cols = append(cols, columnsOf(field.Type)...)
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
	}
	return cols
}

// Fields describes the serialized (JSON) fields of v's struct type.
// Collections are skipped: they are described by relations.
func Fields(v any) []FieldDef {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var fields []FieldDef
	inspectStruct(t, &fields)
	return fields
}

func inspectStruct(t reflect.Type, out *[]FieldDef) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.PkgPath != "" { // unexported
			continue
		}
		if field.Anonymous {
			inspectStruct(field.Type, out)
			continue
		}
		if field.Type.Kind() == reflect.Slice {
			continue
		}

		name := jsonName(field)
		if name == "-" {
			continue
		}

		fDef := FieldDef{
			Name:     name,
			ReadOnly: isReadOnly(field),
		}
		mapFieldType(&fDef, field)
		*out = append(*out, fDef)
	}
}

func mapFieldType(def *FieldDef, field reflect.StructField) {
	t := field.Type
	if t.Kind() == reflect.Ptr {
		def.Nullable = true
		t = t.Elem()
	}

	switch {
	case t == idType:
		def.Type = TypeReference
		// "PostID" -> "post"
		if name := field.Name; name != "ID" && strings.HasSuffix(name, "ID") {
			def.ReferenceType = strings.ToLower(strings.TrimSuffix(name, "ID"))
		}
		return
	case t == timeType:
		def.Type = TypeDate
		return
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		def.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		def.Type = TypeNumber
	case reflect.Bool:
		def.Type = TypeBoolean
	default:
		def.Type = TypeString
	}
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			return parts[0]
		}
	}
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// Columns the session maintains itself.
func isReadOnly(field reflect.StructField) bool {
	switch field.Name {
	case "ID", "CreatedAt", "UpdatedAt", "DeletedAt", "Version":
		return true
	}
	return false
}
