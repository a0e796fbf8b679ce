package ecs

import (
	"fmt"
	"unsafe"
)

// column is the chunk-backed array of one component type. Rows are dense:
// removal moves the last row into the hole, and a trailing chunk goes back to
// the allocator as soon as it holds no rows.
type column struct {
	meta     *Metadata
	stride   int
	perChunk int
	chunks   []*Chunk
	owners   []Handle // row -> owning entity
}

func newColumn(meta *Metadata, chunkSize int) (*column, error) {
	stride := int(meta.Size)
	if stride == 0 {
		stride = 1
	}
	if a := int(meta.Align); a > 1 && stride%a != 0 {
		stride += a - stride%a
	}
	if stride > chunkSize {
		return nil, fmt.Errorf("component %s (%d bytes, chunk %d): %w", meta.Name, stride, chunkSize, ErrComponentTooLarge)
	}
	return &column{
		meta:     meta,
		stride:   stride,
		perChunk: chunkSize / stride,
		owners:   make([]Handle, 0, 64),
	}, nil
}

func (c *column) len() int { return len(c.owners) }

func (c *column) bytes(row int) []byte {
	ch := c.chunks[row/c.perChunk]
	off := (row % c.perChunk) * c.stride
	return ch.data[off : off+c.stride]
}

func (c *column) ptr(row int) unsafe.Pointer {
	return unsafe.Pointer(&c.bytes(row)[0])
}

// push appends a zeroed row owned by h.
func (c *column) push(h Handle, alloc *ChunkAllocator) int32 {
	row := len(c.owners)
	if row == len(c.chunks)*c.perChunk {
		c.chunks = append(c.chunks, alloc.Alloc())
	}
	c.owners = append(c.owners, h)
	return int32(row)
}

// swapRemove deletes row and returns the handle whose data moved into it,
// or InvalidHandle when row was the last one.
func (c *column) swapRemove(row int32, alloc *ChunkAllocator) (Handle, error) {
	last := int32(len(c.owners) - 1)
	moved := InvalidHandle
	if row != last {
		copy(c.bytes(int(row)), c.bytes(int(last)))
		moved = c.owners[last]
		c.owners[row] = moved
	}
	clear(c.bytes(int(last)))
	c.owners = c.owners[:last]

	need := (len(c.owners) + c.perChunk - 1) / c.perChunk
	for len(c.chunks) > need {
		tail := c.chunks[len(c.chunks)-1]
		c.chunks[len(c.chunks)-1] = nil
		c.chunks = c.chunks[:len(c.chunks)-1]
		if err := alloc.Free(tail); err != nil {
			return moved, fmt.Errorf("release %s chunk: %w", c.meta.Name, err)
		}
	}
	return moved, nil
}
