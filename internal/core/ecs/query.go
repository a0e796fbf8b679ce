package ecs

import (
	"fmt"
	"unsafe"
)

// ComponentRef is a weak reference to one component of one entity. It is
// resolved on every use, so it safely reports "gone" after the entity or the
// component has been removed.
type ComponentRef struct {
	world  *World
	handle Handle
	typ    ComponentType
}

func (r ComponentRef) Handle() Handle      { return r.handle }
func (r ComponentRef) Type() ComponentType { return r.typ }

// Valid reports whether the referenced component still exists.
func (r ComponentRef) Valid() bool {
	return r.world != nil && r.world.HasComponent(r.handle, r.typ)
}

// Pointer returns the current address of the component data.
func (r ComponentRef) Pointer() (unsafe.Pointer, bool) {
	if r.world == nil {
		return nil, false
	}
	return r.world.pointer(r.handle, r.typ)
}

// Deref resolves r as a *T.
func Deref[T any](r ComponentRef, id ComponentID[T]) (*T, bool) {
	if r.typ != id.typ {
		return nil, false
	}
	p, ok := r.Pointer()
	if !ok {
		return nil, false
	}
	return (*T)(p), true
}

// Add attaches a component of type T to h and returns its storage.
func Add[T any](w *World, h Handle, id ComponentID[T]) (*T, error) {
	ref, err := w.AddComponent(h, id.typ)
	if err != nil {
		return nil, err
	}
	c, _ := Deref(ref, id)
	return c, nil
}

// Set adds the component if missing and overwrites its value.
func Set[T any](w *World, h Handle, id ComponentID[T], v T) error {
	if c, ok := Get(w, h, id); ok {
		*c = v
		return nil
	}
	c, err := Add(w, h, id)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Get returns the component of type T on h. The pointer is valid until the
// next structural change to T's column.
func Get[T any](w *World, h Handle, id ComponentID[T]) (*T, bool) {
	p, ok := w.pointer(h, id.typ)
	if !ok {
		return nil, false
	}
	return (*T)(p), true
}

// MustGet is Get for callers that have already filtered on the signature.
func MustGet[T any](w *World, h Handle, id ComponentID[T]) *T {
	c, ok := Get(w, h, id)
	if !ok {
		panic(fmt.Sprintf("ecs: entity %s has no component %d", h, id.typ))
	}
	return c
}

// Each1 iterates over live entities that have component A.
func Each1[A any](w *World, a ComponentID[A], fn func(Handle, *A)) {
	w.Each(a.Bit(), func(h Handle) {
		pa, ok := Get(w, h, a)
		if !ok {
			return
		}
		fn(h, pa)
	})
}

// Each2 iterates over live entities that have both component A and B.
func Each2[A, B any](w *World, a ComponentID[A], b ComponentID[B], fn func(Handle, *A, *B)) {
	w.Each(a.Bit()|b.Bit(), func(h Handle) {
		pa, ok := Get(w, h, a)
		if !ok {
			return
		}
		pb, ok := Get(w, h, b)
		if !ok {
			return
		}
		fn(h, pa, pb)
	})
}

// Each3 iterates over live entities that have components A, B, and C.
func Each3[A, B, C any](w *World, a ComponentID[A], b ComponentID[B], c ComponentID[C], fn func(Handle, *A, *B, *C)) {
	w.Each(a.Bit()|b.Bit()|c.Bit(), func(h Handle) {
		pa, ok := Get(w, h, a)
		if !ok {
			return
		}
		pb, ok := Get(w, h, b)
		if !ok {
			return
		}
		pc, ok := Get(w, h, c)
		if !ok {
			return
		}
		fn(h, pa, pb, pc)
	})
}
