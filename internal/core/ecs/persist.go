package ecs

import (
	"fmt"
	"sort"
)

// SaveEntity writes every non-transient component of h into a document, one
// child mapping per component name, in component type order.
func (w *World) SaveEntity(h Handle) (*Document, error) {
	e, ok := w.live(h)
	if !ok {
		return nil, fmt.Errorf("save %s: %w", h, ErrEntityNotFound)
	}
	slots := make([]slot, e.n)
	copy(slots, e.slots[:e.n])
	sort.Slice(slots, func(i, j int) bool { return slots[i].typ < slots[j].typ })

	doc := NewDocument()
	for _, s := range slots {
		meta, _ := w.registry.Meta(s.typ)
		if meta.Transient {
			continue
		}
		child := NewDocument()
		if err := meta.save(w.columns[s.typ].ptr(int(s.row)), child); err != nil {
			return nil, fmt.Errorf("save %s of %s: %w", meta.Name, h, err)
		}
		doc.SetChild(meta.Name, child)
	}
	return doc, nil
}

// LoadEntity creates an entity from a document written by SaveEntity. Keys
// naming unregistered components are skipped and returned so callers can
// report schema drift. On error the half-built entity is destroyed.
func (w *World) LoadEntity(doc *Document) (Handle, []string, error) {
	h := w.CreateEntity()
	var skipped []string
	for _, name := range doc.Keys() {
		meta, ok := w.registry.Lookup(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		child, ok := doc.Child(name)
		if !ok {
			child = NewDocument()
		}
		if _, err := w.AddComponent(h, meta.Type); err != nil {
			w.DestroyEntity(h)
			return InvalidHandle, skipped, fmt.Errorf("load %s: %w", name, err)
		}
		p, _ := w.pointer(h, meta.Type)
		if err := meta.load(p, child); err != nil {
			w.DestroyEntity(h)
			return InvalidHandle, skipped, fmt.Errorf("load %s: %w", name, err)
		}
	}
	return h, skipped, nil
}
