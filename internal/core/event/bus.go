package event

import (
	"reflect"
	"sync"
)

// topic holds the buffers and handlers of one event type.
type topic struct {
	front, back []any
	handlers    []func(any)
	emitted     uint64
	ordered     bool
}

// Bus is a double-buffered event bus. Emit writes the back buffer,
// SwapBuffers makes it readable, DispatchAll delivers it. The event system
// swaps at the start of PreUpdate, so events from the Input phase reach
// handlers in the same tick and later ones in the next tick.
type Bus struct {
	mu     sync.Mutex // only protects handler registration
	topics map[reflect.Type]*topic
	order  []*topic // first-emit order, keeps dispatch deterministic
}

func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]*topic)}
}

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (b *Bus) topic(t reflect.Type) *topic {
	tp, ok := b.topics[t]
	if !ok {
		tp = &topic{}
		b.topics[t] = tp
	}
	return tp
}

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	tp := b.topic(typeOf[T]())
	if !tp.ordered {
		tp.ordered = true
		b.order = append(b.order, tp)
	}
	tp.back = append(tp.back, event)
	tp.emitted++
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tp := b.topic(typeOf[T]())
	tp.handlers = append(tp.handlers, func(ev any) { fn(ev.(T)) })
}

// Emitted returns how many events of type T were ever emitted.
func Emitted[T any](b *Bus) uint64 {
	if tp, ok := b.topics[typeOf[T]()]; ok {
		return tp.emitted
	}
	return 0
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	for _, tp := range b.order {
		tp.front, tp.back = tp.back, tp.front[:0]
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers,
// grouped by type in the order each type was first emitted.
func (b *Bus) DispatchAll() {
	for _, tp := range b.order {
		for _, ev := range tp.front {
			for _, h := range tp.handlers {
				h(ev)
			}
		}
	}
}

// Pending returns the number of events waiting in the front buffer.
func (b *Bus) Pending() int {
	n := 0
	for _, tp := range b.order {
		n += len(tp.front)
	}
	return n
}
