// Package state captures marked fields of live services into a Snapshot and
// writes a Snapshot back onto fresh services.
//
// Fields are marked once per type:
//
//	func init() {
//	    state.Serializable[Cart]("Cart.items", "Items")
//	}
//
// A value implementing Identifiable is stored under "serviceKey-uid" so that
// several instances of one type can coexist in a snapshot.
package state

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Snapshot maps a service key to the captured fields of that service.
type Snapshot map[string]map[string]any

// Identifiable values carry a uid that disambiguates their snapshot key.
type Identifiable interface {
	UID() string
}

// Mark declares that Field of a type is serialized under ServiceKey.
// Property is the name used inside the snapshot: the field's json tag name
// when it has one, the field name otherwise.
type Mark struct {
	ServiceKey string
	Field      string
	Property   string
	index      []int
}

var (
	marksMu sync.RWMutex
	marks   = map[reflect.Type][]Mark{}
)

// Serializable marks field of T for serialization under serviceKey. field
// must be an exported field of the struct T; anything else panics.
func Serializable[T any](serviceKey, field string) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("state: %s is not a struct", typ))
	}
	f, ok := typ.FieldByName(field)
	if !ok || !f.IsExported() {
		panic(fmt.Sprintf("state: %s has no exported field %q", typ, field))
	}

	marksMu.Lock()
	defer marksMu.Unlock()
	marks[typ] = append(marks[typ], Mark{
		ServiceKey: serviceKey,
		Field:      field,
		Property:   propertyName(f),
		index:      f.Index,
	})
}

func propertyName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// Marks returns the marks declared on typ. Marks of structs embedded by value
// are included ahead of typ's own, with their field paths rooted at typ.
func Marks(typ reflect.Type) []Mark {
	if typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	marksMu.RLock()
	defer marksMu.RUnlock()
	return collectMarks(typ, nil, map[reflect.Type]bool{})
}

func collectMarks(typ reflect.Type, prefix []int, seen map[reflect.Type]bool) []Mark {
	if typ == nil || seen[typ] {
		return nil
	}
	seen[typ] = true

	var out []Mark
	if typ.Kind() == reflect.Struct {
		for i := range typ.NumField() {
			f := typ.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				out = append(out, collectMarks(f.Type, append(slices.Clone(prefix), f.Index...), seen)...)
			}
		}
	}
	for _, m := range marks[typ] {
		m.index = append(slices.Clone(prefix), m.index...)
		out = append(out, m)
	}
	return out
}

// KeyFor returns the snapshot key of svc for serviceKey.
func KeyFor(svc any, serviceKey string) string {
	if id, ok := svc.(Identifiable); ok {
		if uid := id.UID(); uid != "" {
			return serviceKey + "-" + uid
		}
	}
	return serviceKey
}
