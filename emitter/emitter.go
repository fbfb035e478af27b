// File: emitter/emitter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Emitter keeps one ordered listener list per event type. Dispatch walks a
// snapshot of the list taken when Publish starts, the same copy-on-read
// discipline the event loop uses for its handler slice.

package emitter

import "slices"

// Listener receives an event together with the resource that published it.
type Listener[E, T any] func(E, *T)

// Source is anything that embeds an Emitter for owner type T.
type Source[T any] interface {
	Emitter() *Emitter[T]
}

// Conn identifies one registered listener for event type E.
// The zero value is never connected.
type Conn[E any] struct {
	id uint64
}

// Valid reports whether the connection was returned by On or Once.
func (c Conn[E]) Valid() bool {
	return c.id != 0
}

type slot[E, T any] struct {
	id   uint64
	fn   func(E, *T)
	once bool
}

type handler[E, T any] struct {
	slots []*slot[E, T]
}

func (h *handler[E, T]) erase(id uint64) {
	h.slots = slices.DeleteFunc(h.slots, func(s *slot[E, T]) bool { return s.id == id })
}

// Emitter is a type-indexed publish/subscribe table owned by exactly one
// resource. It is not safe for concurrent use; every call happens on the
// goroutine driving the owner's loop.
type Emitter[T any] struct {
	owner    *T
	seq      uint64
	handlers map[any]sizer // key: (*E)(nil), value: *handler[E, T]
}

type sizer interface {
	size() int
}

// New returns an emitter bound to owner.
func New[T any](owner *T) *Emitter[T] {
	return &Emitter[T]{owner: owner}
}

// Bind sets the owner passed to listeners. Used when the emitter is embedded.
func (em *Emitter[T]) Bind(owner *T) {
	em.owner = owner
}

// Emitter makes *Emitter itself a Source.
func (em *Emitter[T]) Emitter() *Emitter[T] {
	return em
}

// key identifies event type E without inspecting event values: a typed nil
// pointer boxed in an interface compares equal only to the same type.
func key[E any]() any {
	return (*E)(nil)
}

func lookup[E, T any](em *Emitter[T], create bool) *handler[E, T] {
	if em.handlers == nil {
		if !create {
			return nil
		}
		em.handlers = make(map[any]sizer)
	}
	k := key[E]()
	if h, ok := em.handlers[k]; ok {
		return h.(*handler[E, T])
	}
	if !create {
		return nil
	}
	h := &handler[E, T]{}
	em.handlers[k] = h
	return h
}

func register[E, T any](em *Emitter[T], fn func(E, *T), once bool) Conn[E] {
	h := lookup[E](em, true)
	em.seq++
	h.slots = append(h.slots, &slot[E, T]{id: em.seq, fn: fn, once: once})
	return Conn[E]{id: em.seq}
}

// On registers a long-lived listener for events of type E.
func On[E, T any](src Source[T], fn func(E, *T)) Conn[E] {
	return register(src.Emitter(), fn, false)
}

// Once registers a listener that is removed right before its first call.
func Once[E, T any](src Source[T], fn func(E, *T)) Conn[E] {
	return register(src.Emitter(), fn, true)
}

// Erase disconnects a listener. Erasing twice is a no-op.
func Erase[E, T any](src Source[T], conn Conn[E]) {
	if !conn.Valid() {
		return
	}
	if h := lookup[E](src.Emitter(), false); h != nil {
		h.erase(conn.id)
	}
}

// Publish invokes, in registration order, every listener registered for E
// when the call starts. Listeners erased during dispatch still receive this
// event; listeners added during dispatch only see later ones. Panics raised
// by listeners are not recovered here.
func Publish[E, T any](src Source[T], ev E) {
	em := src.Emitter()
	h := lookup[E](em, false)
	if h == nil || len(h.slots) == 0 {
		return
	}
	snapshot := slices.Clone(h.slots)
	h.slots = slices.DeleteFunc(h.slots, func(s *slot[E, T]) bool { return s.once })
	for _, s := range snapshot {
		s.fn(ev, em.owner)
	}
}

// Clear disconnects every listener for E.
func Clear[E, T any](src Source[T]) {
	if h := lookup[E](src.Emitter(), false); h != nil {
		h.slots = nil
	}
}

// ClearAll disconnects every listener of every event type.
func (em *Emitter[T]) ClearAll() {
	em.handlers = nil
}

// Empty reports whether no listener is registered for E.
func Empty[E, T any](src Source[T]) bool {
	return Count[E](src) == 0
}

// Count returns the number of listeners registered for E.
func Count[E, T any](src Source[T]) int {
	if h := lookup[E](src.Emitter(), false); h != nil {
		return len(h.slots)
	}
	return 0
}

// EmptyAll reports whether no listener is registered at all.
func (em *Emitter[T]) EmptyAll() bool {
	for _, h := range em.handlers {
		if h.size() > 0 {
			return false
		}
	}
	return true
}

func (h *handler[E, T]) size() int {
	return len(h.slots)
}
