// File: uv/async.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Async wakes the loop from another goroutine.

package uv

import (
	"sync/atomic"

	"github.com/momentics/hioload-uv/emitter"
)

// AsyncEvent is published on the loop goroutine after one or more Send calls.
type AsyncEvent struct{}

// Async is active from Init until closed. Calls to Send made before the loop
// delivers the event are coalesced into one AsyncEvent.
type Async struct {
	Handle[Async]
	pending atomic.Bool
	done    atomic.Bool
}

// NewAsync creates and initializes an async handle.
func NewAsync(l *Loop) (*Async, error) {
	a := &Async{}
	a.bind(l, a, AsyncHandle)
	a.teardown = func() { a.done.Store(true) }
	return initialized(a, a.Init())
}

// Init registers the handle and activates it.
func (a *Async) Init() error {
	if err := a.init("async init", nil); err != nil {
		return err
	}
	a.setActive(true)
	return nil
}

// Send schedules an AsyncEvent. It is safe for concurrent use.
func (a *Async) Send() error {
	if a.done.Load() {
		return errClosed("async send")
	}
	if !a.pending.CompareAndSwap(false, true) {
		return nil
	}
	if !a.loop.post(a.deliver) {
		a.pending.Store(false)
		return errClosed("async send")
	}
	return nil
}

func (a *Async) deliver() {
	a.pending.Store(false)
	if a.state != StateActive {
		return
	}
	emitter.Publish[AsyncEvent, Async](a, AsyncEvent{})
}
