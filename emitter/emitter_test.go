// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type owner struct {
	em   Emitter[owner]
	name string
}

func (o *owner) Emitter() *Emitter[owner] { return &o.em }

func newOwner(name string) *owner {
	o := &owner{name: name}
	o.em.Bind(o)
	return o
}

type fooEvent struct{ n int }
type barEvent struct{}

func TestOnPublishOrder(t *testing.T) {
	o := newOwner("src")
	var got []string
	On(o, func(ev fooEvent, src *owner) {
		assert.Same(t, o, src)
		got = append(got, "first")
	})
	On(o, func(ev fooEvent, _ *owner) { got = append(got, "second") })
	On(o, func(barEvent, *owner) { got = append(got, "bar") })

	Publish(o, fooEvent{n: 1})
	assert.Equal(t, []string{"first", "second"}, got)
	Publish(o, barEvent{})
	assert.Equal(t, []string{"first", "second", "bar"}, got)
}

func TestOnceRemovedBeforeCall(t *testing.T) {
	o := newOwner("src")
	calls := 0
	Once(o, func(ev fooEvent, src *owner) {
		calls++
		assert.Equal(t, 0, Count[fooEvent](src))
		Publish(src, fooEvent{})
	})
	Publish(o, fooEvent{})
	Publish(o, fooEvent{})
	assert.Equal(t, 1, calls)
	assert.True(t, Empty[fooEvent](o))
}

func TestEraseIsIdempotent(t *testing.T) {
	o := newOwner("src")
	calls := 0
	conn := On(o, func(fooEvent, *owner) { calls++ })
	require.True(t, conn.Valid())
	Erase(o, conn)
	Erase(o, conn)
	Erase(o, Conn[fooEvent]{})
	Publish(o, fooEvent{})
	assert.Zero(t, calls)
}

func TestEraseDuringDispatchUsesSnapshot(t *testing.T) {
	o := newOwner("src")
	var l1, l2 int
	var c2 Conn[fooEvent]
	On(o, func(fooEvent, *owner) {
		l1++
		Erase(o, c2)
	})
	c2 = On(o, func(fooEvent, *owner) { l2++ })

	Publish(o, fooEvent{})
	assert.Equal(t, 1, l1)
	assert.Equal(t, 1, l2, "listener erased mid-dispatch still sees the in-progress event")

	Publish(o, fooEvent{})
	assert.Equal(t, 2, l1)
	assert.Equal(t, 1, l2)
}

func TestAddDuringDispatchAppliesNextPublish(t *testing.T) {
	o := newOwner("src")
	added := 0
	registered := false
	On(o, func(fooEvent, *owner) {
		if !registered {
			registered = true
			On(o, func(fooEvent, *owner) { added++ })
		}
	})
	Publish(o, fooEvent{})
	assert.Zero(t, added)
	Publish(o, fooEvent{})
	assert.Equal(t, 1, added)
}

func TestClearAndEmpty(t *testing.T) {
	o := newOwner("src")
	assert.True(t, o.em.EmptyAll())
	On(o, func(fooEvent, *owner) {})
	Once(o, func(barEvent, *owner) {})
	assert.False(t, o.em.EmptyAll())
	assert.Equal(t, 1, Count[fooEvent](o))

	Clear[fooEvent](o)
	assert.True(t, Empty[fooEvent](o))
	assert.False(t, Empty[barEvent](o))

	o.em.ClearAll()
	assert.True(t, o.em.EmptyAll())
}

func TestListenerPanicPropagates(t *testing.T) {
	o := newOwner("src")
	On(o, func(fooEvent, *owner) { panic("boom") })
	assert.PanicsWithValue(t, "boom", func() { Publish(o, fooEvent{}) })
}

func TestStandaloneEmitter(t *testing.T) {
	o := &owner{name: "plain"}
	em := New(o)
	var seen string
	On(em, func(ev fooEvent, src *owner) { seen = src.name })
	Publish(em, fooEvent{})
	assert.Equal(t, "plain", seen)
}
