package ecs

import "errors"

// Invariant violations. Callers get these wrapped with context; match with errors.Is.
var (
	ErrNilChunk     = errors.New("nil chunk")
	ErrForeignChunk = errors.New("chunk belongs to another allocator")
	ErrDoubleFree   = errors.New("chunk freed twice")

	ErrRegistryFrozen     = errors.New("component registry is frozen")
	ErrDuplicateComponent = errors.New("component already registered")
	ErrTooManyTypes       = errors.New("component type limit reached")
	ErrNotPlainData       = errors.New("component type holds pointers")
	ErrComponentTooLarge  = errors.New("component does not fit in a chunk")

	ErrEntityNotFound    = errors.New("entity not found")
	ErrUnknownComponent  = errors.New("unknown component type")
	ErrComponentExists   = errors.New("component already present")
	ErrComponentMissing  = errors.New("component not present")
	ErrTooManyComponents = errors.New("entity component slots exhausted")
)
