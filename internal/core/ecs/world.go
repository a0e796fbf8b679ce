package ecs

import (
	"errors"
	"fmt"
	"unsafe"
)

// World is the entity store. It owns every entity record, the chunk-backed
// column of each component type, and the handle table that keeps handles
// valid while records and rows are compacted.
//
// World is driven from the game loop goroutine only; it has no locks.
//
// Destruction during iteration is deferred: DestroyEntity inside an Each pass
// clears the alive bit at once, so the rest of the pass skips the entity, and
// runs the destroy callbacks and releases storage when the outermost pass
// returns.
type World struct {
	registry *Registry
	chunks   *ChunkAllocator
	handles  *HandleTable
	entities []entity
	columns  []*column
	alive    int

	passes       int
	deferred     []Handle
	destroyQueue []Handle
	onDestroy    []func(Handle)
	faults       []error
}

// NewWorld builds a store over reg, which is frozen from here on.
func NewWorld(reg *Registry, chunks *ChunkAllocator) (*World, error) {
	reg.Freeze()
	w := &World{
		registry:     reg,
		chunks:       chunks,
		handles:      NewHandleTable(),
		entities:     make([]entity, 0, 1024),
		columns:      make([]*column, reg.Len()),
		destroyQueue: make([]Handle, 0, 64),
	}
	for i := 0; i < reg.Len(); i++ {
		meta, _ := reg.Meta(ComponentType(i))
		col, err := newColumn(meta, chunks.Size())
		if err != nil {
			return nil, err
		}
		w.columns[i] = col
	}
	return w, nil
}

func (w *World) Registry() *Registry     { return w.registry }
func (w *World) Chunks() *ChunkAllocator { return w.chunks }
func (w *World) Handles() *HandleTable   { return w.handles }

// Len returns the number of live entities.
func (w *World) Len() int { return w.alive }

// OnDestroy registers fn to run after an entity's components are destroyed
// and its storage released.
func (w *World) OnDestroy(fn func(Handle)) {
	w.onDestroy = append(w.onDestroy, fn)
}

// CreateEntity allocates an entity with an empty signature.
func (w *World) CreateEntity() Handle {
	idx := int32(len(w.entities))
	h := w.handles.Issue(idx)
	w.entities = append(w.entities, entity{handle: h, sig: AliveBit})
	w.alive++
	return h
}

// Alive reports whether h names a live entity.
func (w *World) Alive(h Handle) bool {
	_, ok := w.live(h)
	return ok
}

// Signature returns the component bits of h, zero when h is not alive.
func (w *World) Signature(h Handle) Signature {
	e, ok := w.live(h)
	if !ok {
		return 0
	}
	return e.sig
}

// DestroyEntity destroys h. Unknown or already destroyed handles are ignored.
func (w *World) DestroyEntity(h Handle) {
	e, ok := w.live(h)
	if !ok {
		return
	}
	e.sig &^= AliveBit
	w.alive--
	if w.passes > 0 {
		w.deferred = append(w.deferred, h)
		return
	}
	w.remove(h)
}

// MarkForDestruction queues h for the next FlushDestroyQueue.
func (w *World) MarkForDestruction(h Handle) {
	w.destroyQueue = append(w.destroyQueue, h)
}

// FlushDestroyQueue destroys every queued entity. Called by the cleanup
// system at the end of each tick.
func (w *World) FlushDestroyQueue() {
	for _, h := range w.destroyQueue {
		w.DestroyEntity(h)
	}
	w.destroyQueue = w.destroyQueue[:0]
}

// Err returns and clears storage faults recorded while releasing rows.
func (w *World) Err() error {
	if len(w.faults) == 0 {
		return nil
	}
	err := errors.Join(w.faults...)
	w.faults = w.faults[:0]
	return err
}

// AddComponent attaches a zeroed component of type t to h and runs its Init
// callback.
func (w *World) AddComponent(h Handle, t ComponentType) (ComponentRef, error) {
	e, ok := w.live(h)
	if !ok {
		return ComponentRef{}, fmt.Errorf("add component %d to %s: %w", t, h, ErrEntityNotFound)
	}
	meta, ok := w.registry.Meta(t)
	if !ok {
		return ComponentRef{}, fmt.Errorf("add component %d to %s: %w", t, h, ErrUnknownComponent)
	}
	if e.sig&t.Bit() != 0 {
		return ComponentRef{}, fmt.Errorf("add %s to %s: %w", meta.Name, h, ErrComponentExists)
	}
	if e.n == MaxEntityComponents {
		return ComponentRef{}, fmt.Errorf("add %s to %s: %w", meta.Name, h, ErrTooManyComponents)
	}

	col := w.columns[t]
	row := col.push(h, w.chunks)
	e.slots[e.n] = slot{typ: t, row: row}
	e.n++
	e.sig |= t.Bit()

	if meta.init != nil {
		meta.init(h, col.ptr(int(row)))
	}
	return ComponentRef{world: w, handle: h, typ: t}, nil
}

// RemoveComponent runs the Destroy callback of t on h and releases its row.
func (w *World) RemoveComponent(h Handle, t ComponentType) error {
	e, ok := w.live(h)
	if !ok {
		return fmt.Errorf("remove component %d from %s: %w", t, h, ErrEntityNotFound)
	}
	meta, ok := w.registry.Meta(t)
	if !ok {
		return fmt.Errorf("remove component %d from %s: %w", t, h, ErrUnknownComponent)
	}
	i := e.find(t)
	if i < 0 {
		return fmt.Errorf("remove %s from %s: %w", meta.Name, h, ErrComponentMissing)
	}

	// the callback runs as a pass: destroying h from it is deferred until
	// the slot is gone, so no callback runs twice
	idx, _ := w.handles.Lookup(h)
	if meta.destroy != nil {
		w.passes++
		meta.destroy(h, w.columns[t].ptr(int(e.slots[i].row)))
		w.passes--
	}
	e = &w.entities[idx]
	var err error
	if i = e.find(t); i >= 0 {
		row := e.slots[i].row
		e.removeSlot(i)
		e.sig &^= t.Bit()
		err = w.releaseRow(t, row)
	}
	w.flushDeferred()
	return err
}

// HasComponent reports whether live entity h has a component of type t.
func (w *World) HasComponent(h Handle, t ComponentType) bool {
	e, ok := w.live(h)
	return ok && e.sig&t.Bit() != 0
}

// Each calls fn for every live entity whose signature contains mask, once
// each. Entities created by fn are not visited in the same pass.
func (w *World) Each(mask Signature, fn func(Handle)) {
	w.passes++
	defer w.endPass()

	n := len(w.entities)
	for i := 0; i < n; i++ {
		e := &w.entities[i]
		if !e.sig.Alive() || !e.sig.Has(mask) {
			continue
		}
		fn(e.handle)
	}
}

// Iterating reports whether an Each pass is running.
func (w *World) Iterating() bool { return w.passes > 0 }

func (w *World) endPass() {
	w.passes--
	w.flushDeferred()
}

func (w *World) flushDeferred() {
	for w.passes == 0 && len(w.deferred) > 0 {
		h := w.deferred[0]
		w.deferred = w.deferred[1:]
		w.remove(h)
	}
}

func (w *World) live(h Handle) (*entity, bool) {
	idx, ok := w.handles.Lookup(h)
	if !ok {
		return nil, false
	}
	e := &w.entities[idx]
	if !e.sig.Alive() {
		return nil, false
	}
	return e, true
}

func (w *World) pointer(h Handle, t ComponentType) (unsafe.Pointer, bool) {
	e, ok := w.live(h)
	if !ok {
		return nil, false
	}
	i := e.find(t)
	if i < 0 {
		return nil, false
	}
	return w.columns[t].ptr(int(e.slots[i].row)), true
}

// remove physically deletes a logically dead entity: destroy callbacks, row
// release, record compaction, then destroy hooks.
func (w *World) remove(h Handle) {
	idx, ok := w.handles.Lookup(h)
	if !ok {
		return
	}
	// callbacks that destroy other entities must not compact records under us
	w.passes++
	for i := 0; i < int(w.entities[idx].n); i++ {
		s := w.entities[idx].slots[i]
		if meta, _ := w.registry.Meta(s.typ); meta.destroy != nil {
			meta.destroy(h, w.columns[s.typ].ptr(int(s.row)))
		}
	}
	w.passes--

	for w.entities[idx].n > 0 {
		e := &w.entities[idx]
		s := e.slots[e.n-1]
		e.slots[e.n-1] = slot{}
		e.n--
		if err := w.releaseRow(s.typ, s.row); err != nil {
			w.faults = append(w.faults, fmt.Errorf("destroy %s: %w", h, err))
		}
	}

	last := int32(len(w.entities) - 1)
	if idx != last {
		w.entities[idx] = w.entities[last]
		w.handles.Relocate(w.entities[idx].handle, idx)
	}
	w.entities[last] = entity{}
	w.entities = w.entities[:last]
	w.handles.Release(h)

	for _, fn := range w.onDestroy {
		fn(h)
	}
	w.flushDeferred()
}

func (w *World) releaseRow(t ComponentType, row int32) error {
	moved, err := w.columns[t].swapRemove(row, w.chunks)
	if moved != InvalidHandle {
		if idx, ok := w.handles.Lookup(moved); ok {
			w.entities[idx].setRow(t, row)
		}
	}
	return err
}
