package ecs

import "strconv"

// Handle identifies one entity for the lifetime of the process. Handles are
// issued monotonically from 1 and never reused; 0 means "no entity".
//
// A handle is a lookup key, not ownership: a failed lookup means the entity
// is gone.
type Handle uint64

// InvalidHandle is the zero handle.
const InvalidHandle Handle = 0

func (h Handle) IsZero() bool { return h == InvalidHandle }

func (h Handle) String() string { return strconv.FormatUint(uint64(h), 10) }

// HandleTable maps live handles to the current index of their entity record.
// Records move when the store compacts; the handle does not.
type HandleTable struct {
	next  Handle
	index map[Handle]int32
}

func NewHandleTable() *HandleTable {
	return &HandleTable{
		next:  1,
		index: make(map[Handle]int32, 1024),
	}
}

// Issue allocates a never-before-seen handle pointing at idx.
func (t *HandleTable) Issue(idx int32) Handle {
	h := t.next
	t.next++
	t.index[h] = idx
	return h
}

// Lookup returns the record index of h.
func (t *HandleTable) Lookup(h Handle) (int32, bool) {
	idx, ok := t.index[h]
	return idx, ok
}

// Relocate points h at a new record index after compaction.
func (t *HandleTable) Relocate(h Handle, idx int32) {
	if _, ok := t.index[h]; ok {
		t.index[h] = idx
	}
}

// Release forgets h. The value is never issued again.
func (t *HandleTable) Release(h Handle) {
	delete(t.index, h)
}

// Len returns the number of live handles.
func (t *HandleTable) Len() int { return len(t.index) }

// Issued returns how many handles have been handed out in total.
func (t *HandleTable) Issued() uint64 { return uint64(t.next - 1) }
