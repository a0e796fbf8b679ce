// Package linking maps local entity handles to the network IDs shared by the
// server and its clients.
package linking

import (
	"errors"
	"fmt"
	"sort"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// NetID is the network-stable identity of an entity. 0 means "none".
type NetID uint32

var (
	ErrZeroHandle   = errors.New("linking: zero handle")
	ErrZeroNetID    = errors.New("linking: zero net id")
	ErrHandleLinked = errors.New("linking: handle already linked")
	ErrNetIDLinked  = errors.New("linking: net id already linked")
)

// Context is a bijection between handles and net IDs. Game loop only.
type Context struct {
	byNet    map[NetID]ecs.Handle
	byHandle map[ecs.Handle]NetID
	next     NetID
}

func NewContext() *Context {
	return &Context{
		byNet:    make(map[NetID]ecs.Handle, 256),
		byHandle: make(map[ecs.Handle]NetID, 256),
		next:     1,
	}
}

// AddEntity registers (h, id). Neither side may be zero or already linked;
// existing mappings are never overwritten. Later NextNetID calls skip past id.
func (c *Context) AddEntity(h ecs.Handle, id NetID) error {
	if h.IsZero() {
		return fmt.Errorf("link net id %d: %w", id, ErrZeroHandle)
	}
	if id == 0 {
		return fmt.Errorf("link %s: %w", h, ErrZeroNetID)
	}
	if prev, ok := c.byHandle[h]; ok {
		return fmt.Errorf("link %s to %d (has %d): %w", h, id, prev, ErrHandleLinked)
	}
	if prev, ok := c.byNet[id]; ok {
		return fmt.Errorf("link %s to %d (held by %s): %w", h, id, prev, ErrNetIDLinked)
	}
	c.byNet[id] = h
	c.byHandle[h] = id
	if id >= c.next {
		c.next = id + 1
	}
	return nil
}

// NextNetID issues a fresh net id. IDs start at 1 and are never reused.
func (c *Context) NextNetID() NetID {
	id := c.next
	c.next++
	return id
}

// Link assigns the next net id to h.
func (c *Context) Link(h ecs.Handle) (NetID, error) {
	if h.IsZero() {
		return 0, fmt.Errorf("link: %w", ErrZeroHandle)
	}
	if prev, ok := c.byHandle[h]; ok {
		return prev, fmt.Errorf("link %s (has %d): %w", h, prev, ErrHandleLinked)
	}
	id := c.NextNetID()
	c.byNet[id] = h
	c.byHandle[h] = id
	return id, nil
}

// RemoveEntity unlinks h. Unlinked handles are ignored.
func (c *Context) RemoveEntity(h ecs.Handle) {
	id, ok := c.byHandle[h]
	if !ok {
		return
	}
	delete(c.byHandle, h)
	delete(c.byNet, id)
}

// RemoveNetID unlinks id. Used by clients, which learn about removals by net id.
func (c *Context) RemoveNetID(id NetID) ecs.Handle {
	h, ok := c.byNet[id]
	if !ok {
		return ecs.InvalidHandle
	}
	delete(c.byNet, id)
	delete(c.byHandle, h)
	return h
}

// Resolve returns the handle linked to id, or 0.
func (c *Context) Resolve(id NetID) ecs.Handle { return c.byNet[id] }

// ResolveReverse returns the net id linked to h, or 0.
func (c *Context) ResolveReverse(h ecs.Handle) NetID { return c.byHandle[h] }

func (c *Context) Len() int { return len(c.byNet) }

// Each calls fn for every link in ascending net id order.
func (c *Context) Each(fn func(NetID, ecs.Handle)) {
	ids := make([]NetID, 0, len(c.byNet))
	for id := range c.byNet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(id, c.byNet[id])
	}
}

// Attach unlinks entities as w destroys them.
func (c *Context) Attach(w *ecs.World) {
	w.OnDestroy(c.RemoveEntity)
}
