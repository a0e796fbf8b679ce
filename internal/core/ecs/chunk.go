package ecs

import "fmt"

// DefaultChunkSize is the byte size of one component storage block.
const DefaultChunkSize = 16 * 1024

// Chunk is a fixed-size block of component memory. While free it belongs to
// its allocator; while in use it belongs to exactly one component column.
type Chunk struct {
	data  []byte
	owner *ChunkAllocator
	id    uint32
	free  bool
}

// Bytes exposes the chunk memory. Only the current holder may touch it.
func (c *Chunk) Bytes() []byte { return c.data }

// ID is the allocation order of the chunk, stable for its lifetime.
func (c *Chunk) ID() uint32 { return c.id }

// ChunkAllocator is a long-lived pool of equally sized chunks. It never gives
// memory back: the owned count only grows, and freed chunks are handed out
// again most-recently-freed first. Not safe for concurrent use.
type ChunkAllocator struct {
	size  int
	free  []*Chunk
	owned uint32
	inUse int
}

// NewChunkAllocator creates a pool of chunks of the given byte size.
// A non-positive size selects DefaultChunkSize.
func NewChunkAllocator(size int) *ChunkAllocator {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkAllocator{
		size: size,
		free: make([]*Chunk, 0, 64),
	}
}

// Alloc returns a zeroed chunk, reusing a freed one when available.
func (a *ChunkAllocator) Alloc() *Chunk {
	a.inUse++
	if n := len(a.free); n > 0 {
		c := a.free[n-1]
		a.free[n-1] = nil
		a.free = a.free[:n-1]
		c.free = false
		clear(c.data)
		return c
	}
	a.owned++
	return &Chunk{
		data:  make([]byte, a.size),
		owner: a,
		id:    a.owned,
	}
}

// Free returns c to the pool. The caller must not touch c again until a
// later Alloc hands it back.
func (a *ChunkAllocator) Free(c *Chunk) error {
	if c == nil {
		return ErrNilChunk
	}
	if c.owner != a {
		return fmt.Errorf("free chunk %d: %w", c.id, ErrForeignChunk)
	}
	if c.free {
		return fmt.Errorf("free chunk %d: %w", c.id, ErrDoubleFree)
	}
	c.free = true
	a.free = append(a.free, c)
	a.inUse--
	return nil
}

// Size is the byte size of every chunk in the pool.
func (a *ChunkAllocator) Size() int { return a.size }

// Owned is the number of chunks ever allocated from the system.
func (a *ChunkAllocator) Owned() int { return int(a.owned) }

// InUse is the number of chunks handed out and not yet freed.
func (a *ChunkAllocator) InUse() int { return a.inUse }

// Available is the number of chunks sitting in the free list.
func (a *ChunkAllocator) Available() int { return len(a.free) }
