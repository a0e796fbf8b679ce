package ecs

import (
	"fmt"
	"reflect"
	"unsafe"
)

// ComponentType is the per-registry identifier of a component type. It is
// also the component's bit index in an entity Signature.
type ComponentType uint8

// MaxComponentTypes is the number of signature bits available to components.
// The top bit of a Signature is reserved for the alive flag.
const MaxComponentTypes = 63

// maxComponentAlign is the strongest alignment chunk memory guarantees.
const maxComponentAlign = 8

// ComponentID is a typed view of a ComponentType, returned at registration so
// typed accessors cannot be called with the wrong Go type.
type ComponentID[T any] struct {
	typ ComponentType
}

// Type returns the untyped identifier.
func (id ComponentID[T]) Type() ComponentType { return id.typ }

// Bit returns the signature bit of this component.
func (id ComponentID[T]) Bit() Signature { return id.typ.Bit() }

// Hooks is the function table of one component type. Every field is optional.
//
// Save and Load default to encoding the whole struct with its yaml tags.
// Load runs after Init, so keys absent from a document keep the Init value.
type Hooks[T any] struct {
	Init    func(h Handle, c *T)
	Destroy func(h Handle, c *T)
	Save    func(c *T, d *Document) error
	Load    func(c *T, d *Document) error

	// Transient components are skipped by World.SaveEntity.
	Transient bool
}

// Metadata describes one registered component type. Dispatch goes through
// these function values, keyed by ComponentType.
type Metadata struct {
	Type      ComponentType
	Name      string
	Size      uintptr
	Align     uintptr
	Transient bool

	rtype   reflect.Type
	init    func(Handle, unsafe.Pointer)
	destroy func(Handle, unsafe.Pointer)
	save    func(unsafe.Pointer, *Document) error
	load    func(unsafe.Pointer, *Document) error
}

// GoType returns the registered Go type.
func (m *Metadata) GoType() reflect.Type { return m.rtype }

// Registry holds the metadata of every component type. It is built once at
// startup and frozen when a World takes it; after that it is read-only.
type Registry struct {
	metas  []*Metadata
	byName map[string]*Metadata
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{
		metas:  make([]*Metadata, 0, 16),
		byName: make(map[string]*Metadata, 16),
	}
}

// RegisterComponent adds T to the registry under name. T must be plain data:
// its bytes live in chunk memory that the garbage collector does not scan.
func RegisterComponent[T any](r *Registry, name string, hooks Hooks[T]) (ComponentID[T], error) {
	var zero T
	rt := reflect.TypeOf(zero)
	if r.frozen {
		return ComponentID[T]{}, fmt.Errorf("register %s: %w", name, ErrRegistryFrozen)
	}
	if rt == nil {
		return ComponentID[T]{}, fmt.Errorf("register %s: interface types are not components: %w", name, ErrNotPlainData)
	}
	if _, ok := r.byName[name]; ok {
		return ComponentID[T]{}, fmt.Errorf("register %s: %w", name, ErrDuplicateComponent)
	}
	for _, m := range r.metas {
		if m.rtype == rt {
			return ComponentID[T]{}, fmt.Errorf("register %s: %s already registered as %s: %w", name, rt, m.Name, ErrDuplicateComponent)
		}
	}
	if len(r.metas) >= MaxComponentTypes {
		return ComponentID[T]{}, fmt.Errorf("register %s: %w", name, ErrTooManyTypes)
	}
	if !isPlainData(rt) {
		return ComponentID[T]{}, fmt.Errorf("register %s (%s): %w", name, rt, ErrNotPlainData)
	}
	if align := unsafe.Alignof(zero); align > maxComponentAlign {
		return ComponentID[T]{}, fmt.Errorf("register %s: alignment %d exceeds %d: %w", name, align, maxComponentAlign, ErrNotPlainData)
	}

	m := &Metadata{
		Type:      ComponentType(len(r.metas)),
		Name:      name,
		Size:      unsafe.Sizeof(zero),
		Align:     unsafe.Alignof(zero),
		Transient: hooks.Transient,
		rtype:     rt,
	}
	if hooks.Init != nil {
		m.init = func(h Handle, p unsafe.Pointer) { hooks.Init(h, (*T)(p)) }
	}
	if hooks.Destroy != nil {
		m.destroy = func(h Handle, p unsafe.Pointer) { hooks.Destroy(h, (*T)(p)) }
	}
	if hooks.Save != nil {
		m.save = func(p unsafe.Pointer, d *Document) error { return hooks.Save((*T)(p), d) }
	} else {
		m.save = func(p unsafe.Pointer, d *Document) error { return d.Encode((*T)(p)) }
	}
	if hooks.Load != nil {
		m.load = func(p unsafe.Pointer, d *Document) error { return hooks.Load((*T)(p), d) }
	} else {
		m.load = func(p unsafe.Pointer, d *Document) error { return d.Decode((*T)(p)) }
	}

	r.metas = append(r.metas, m)
	r.byName[name] = m
	return ComponentID[T]{typ: m.Type}, nil
}

// Meta returns the metadata of t.
func (r *Registry) Meta(t ComponentType) (*Metadata, bool) {
	if int(t) >= len(r.metas) {
		return nil, false
	}
	return r.metas[t], true
}

// Lookup finds a component type by its persisted name.
func (r *Registry) Lookup(name string) (*Metadata, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Len returns the number of registered component types.
func (r *Registry) Len() int { return len(r.metas) }

// Freeze stops further registration.
func (r *Registry) Freeze() { r.frozen = true }

// Frozen reports whether registration is closed.
func (r *Registry) Frozen() bool { return r.frozen }

// isPlainData reports whether values of t contain no GC-visible pointers.
func isPlainData(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isPlainData(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isPlainData(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
