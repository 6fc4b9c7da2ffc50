package events

import (
	"sync"
)

// Name identifies an event within a component's closed set of events.
type Name string

// handler is one registered callback. The id keeps removal stable when the
// same function value is registered twice.
type handler[T any] struct {
	id   uint64
	fn   func(T)
	once bool
}

// Emitter dispatches values of type T to registered handlers.
type Emitter[T any] struct {
	name Name

	mu       sync.Mutex
	handlers []handler[T]
	nextID   uint64
}

// NewEmitter creates an emitter for the named event.
func NewEmitter[T any](name Name) *Emitter[T] {
	return &Emitter[T]{name: name}
}

// Name returns the event name.
func (e *Emitter[T]) Name() Name {
	return e.name
}

// On registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (e *Emitter[T]) On(fn func(T)) (off func()) {
	return e.add(fn, false)
}

// Once registers fn for the next emission only.
func (e *Emitter[T]) Once(fn func(T)) (off func()) {
	return e.add(fn, true)
}

func (e *Emitter[T]) add(fn func(T), once bool) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, handler[T]{id: id, fn: fn, once: once})
	e.mu.Unlock()

	return func() { e.remove(id) }
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit invokes every handler registered at the time of the call, in
// registration order, and reports whether any handler existed.
// Handlers may register or remove handlers while being invoked.
func (e *Emitter[T]) Emit(v T) bool {
	e.mu.Lock()
	if len(e.handlers) == 0 {
		e.mu.Unlock()
		return false
	}
	snapshot := make([]handler[T], len(e.handlers))
	copy(snapshot, e.handlers)

	// Drop one-shot handlers before they run so a re-entrant Emit cannot
	// invoke them twice.
	kept := e.handlers[:0:0]
	for _, h := range e.handlers {
		if !h.once {
			kept = append(kept, h)
		}
	}
	e.handlers = kept
	e.mu.Unlock()

	for _, h := range snapshot {
		h.fn(v)
	}
	return true
}

// Len returns the number of registered handlers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

// Clear removes every handler.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	e.handlers = nil
	e.mu.Unlock()
}
