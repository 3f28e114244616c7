// Package decorator attaches behaviors to members of a type. Declarations are
// static and made once per type, usually from init:
//
//	func init() {
//	    decorator.Apply[Cart]("OnCheckout", decorator.Listen[CheckoutEvent]())
//	}
//
// Nothing runs until Initialize is called for a concrete value against a
// container. Each (container, value) pair then owns its own behavior
// instances, which Destroy or DestroyContainer tear down.
package decorator

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pthm/hxioc/lib/container"
)

// Behavior is a live decoration bound to one member of one value. Embed
// Base to implement it.
type Behavior interface {
	Created() error
	Destroyed() error
	bind(Binding)
}

// Descriptor gives access to the decorated member of the bound value.
// Exactly one of Method and Field is valid.
type Descriptor struct {
	// Method is the member bound to its receiver.
	Method reflect.Value
	// Field is the addressable struct field.
	Field reflect.Value
}

// IsMethod reports whether the member is a method.
func (d Descriptor) IsMethod() bool {
	return d.Method.IsValid()
}

// Binding is what a behavior learns about the member it decorates.
type Binding struct {
	Options      any
	Instance     any
	Prototype    reflect.Type
	PropertyName string
	Descriptor   Descriptor
}

// Base implements Behavior. O is the options type passed to Create.
type Base[O any] struct {
	binding Binding
}

func (b *Base[O]) bind(binding Binding) { b.binding = binding }

// Created runs after the behavior is bound. Override it.
func (b *Base[O]) Created() error { return nil }

// Destroyed runs on teardown. Override it.
func (b *Base[O]) Destroyed() error { return nil }

// Options returns the options given at declaration.
func (b *Base[O]) Options() O {
	o, _ := b.binding.Options.(O)
	return o
}

// Instance returns the decorated value.
func (b *Base[O]) Instance() any { return b.binding.Instance }

// Prototype returns the struct type the decoration was declared on. For a
// member promoted from an embedded struct this is the embedded type.
func (b *Base[O]) Prototype() reflect.Type { return b.binding.Prototype }

// PropertyName returns the decorated member name.
func (b *Base[O]) PropertyName() string { return b.binding.PropertyName }

// Descriptor returns the decorated member, bound to Instance.
func (b *Base[O]) Descriptor() Descriptor { return b.binding.Descriptor }

// Binding returns everything the behavior was bound with.
func (b *Base[O]) Binding() Binding { return b.binding }

// Decoration pairs a behavior provider with its options. Build one with
// Create and attach it with Apply.
type Decoration struct {
	name    string
	options any
	build   func(r container.Resolver) (Behavior, error)
}

// Name is the behavior type name.
func (d Decoration) Name() string { return d.name }

// Create declares a decoration. The behavior is built through the container
// each time a value is initialized, so p may depend on any binding.
func Create[B Behavior, O any](p container.Provider[B], options O) Decoration {
	return Decoration{
		name:    reflect.TypeFor[B]().String(),
		options: options,
		build: func(r container.Resolver) (Behavior, error) {
			return container.Resolve(r, p)
		},
	}
}

// Entry is one declared decoration of a member.
type Entry struct {
	Options    any
	Prototype  reflect.Type
	Member     string
	decoration Decoration
}

var (
	registryMu sync.RWMutex
	registry   = map[reflect.Type][]Entry{}
)

// Apply declares decorations on member of T. member is a method of *T or an
// exported field of T. Declaring an unknown member panics.
func Apply[T any](member string, decorations ...Decoration) {
	typ := baseType(reflect.TypeFor[T]())
	if !hasMember(typ, member) {
		panic(fmt.Sprintf("decorator: %s has no method or exported field %q", typ, member))
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	for _, d := range decorations {
		registry[typ] = append(registry[typ], Entry{
			Options:    d.options,
			Prototype:  typ,
			Member:     member,
			decoration: d,
		})
	}
}

// Entries returns the declarations of typ in declaration order. Declarations
// of structs embedded by value come first, so a type inherits the
// decorations of what it embeds.
func Entries(typ reflect.Type) []Entry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return collectEntries(baseType(typ), map[reflect.Type]bool{})
}

func collectEntries(typ reflect.Type, seen map[reflect.Type]bool) []Entry {
	if typ == nil || seen[typ] {
		return nil
	}
	seen[typ] = true

	var out []Entry
	if typ.Kind() == reflect.Struct {
		for i := range typ.NumField() {
			f := typ.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				out = append(out, collectEntries(f.Type, seen)...)
			}
		}
	}
	return append(out, registry[typ]...)
}

func baseType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func hasMember(typ reflect.Type, member string) bool {
	if _, ok := reflect.PointerTo(typ).MethodByName(member); ok {
		return true
	}
	if typ.Kind() != reflect.Struct {
		return false
	}
	f, ok := typ.FieldByName(member)
	return ok && f.IsExported()
}
