package ecs

import "math/bits"

// Signature is a component bitset. Bit i is set when component type i is
// attached; AliveBit is reserved for the entity's alive flag.
type Signature uint64

const AliveBit Signature = 1 << 63

// MaxEntityComponents is the number of component slots in one entity record.
const MaxEntityComponents = 14

// Bit returns the signature bit of t.
func (t ComponentType) Bit() Signature { return Signature(1) << t }

// Has reports whether every bit of mask is set in s.
func (s Signature) Has(mask Signature) bool { return s&mask == mask }

// Alive reports whether the alive bit is set.
func (s Signature) Alive() bool { return s&AliveBit != 0 }

// Count returns the number of component bits set.
func (s Signature) Count() int { return bits.OnesCount64(uint64(s &^ AliveBit)) }

// Mask builds a signature from component types.
func Mask(types ...ComponentType) Signature {
	var s Signature
	for _, t := range types {
		s |= t.Bit()
	}
	return s
}

// slot points a component of an entity at its row in the type's column.
type slot struct {
	typ ComponentType
	row int32
}

// entity is the fixed-capacity record the store keeps per entity.
type entity struct {
	handle Handle
	sig    Signature
	n      uint8
	slots  [MaxEntityComponents]slot
}

func (e *entity) find(t ComponentType) int {
	for i := 0; i < int(e.n); i++ {
		if e.slots[i].typ == t {
			return i
		}
	}
	return -1
}

func (e *entity) setRow(t ComponentType, row int32) {
	if i := e.find(t); i >= 0 {
		e.slots[i].row = row
	}
}

func (e *entity) removeSlot(i int) {
	last := int(e.n) - 1
	e.slots[i] = e.slots[last]
	e.slots[last] = slot{}
	e.n--
}
