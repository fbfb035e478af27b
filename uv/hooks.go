// File: uv/hooks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Idle, Prepare and Check run once per loop pass at fixed points: idle and
// prepare before polling, check right after it. An active idle handle makes
// the poll non-blocking.

package uv

import "github.com/momentics/hioload-uv/emitter"

// IdleEvent is published once per pass while an Idle handle is active.
type IdleEvent struct{}

// PrepareEvent is published once per pass right before polling.
type PrepareEvent struct{}

// CheckEvent is published once per pass right after polling.
type CheckEvent struct{}

// Idle runs a callback on every pass and keeps the poll from blocking.
type Idle struct {
	Handle[Idle]
	hook hook
}

// Prepare runs a callback on every pass before the loop polls.
type Prepare struct {
	Handle[Prepare]
	hook hook
}

// Check runs a callback on every pass after the loop polls.
type Check struct {
	Handle[Check]
	hook hook
}

// NewIdle creates and initializes an idle handle.
func NewIdle(l *Loop) (*Idle, error) {
	h := &Idle{}
	h.bind(l, h, IdleHandle)
	h.hook.fire = func() { emitter.Publish[IdleEvent, Idle](h, IdleEvent{}) }
	h.teardown = func() { l.idles.remove(&h.hook) }
	return initialized(h, h.Init())
}

// NewPrepare creates and initializes a prepare handle.
func NewPrepare(l *Loop) (*Prepare, error) {
	h := &Prepare{}
	h.bind(l, h, PrepareHandle)
	h.hook.fire = func() { emitter.Publish[PrepareEvent, Prepare](h, PrepareEvent{}) }
	h.teardown = func() { l.prepares.remove(&h.hook) }
	return initialized(h, h.Init())
}

// NewCheck creates and initializes a check handle.
func NewCheck(l *Loop) (*Check, error) {
	h := &Check{}
	h.bind(l, h, CheckHandle)
	h.hook.fire = func() { emitter.Publish[CheckEvent, Check](h, CheckEvent{}) }
	h.teardown = func() { l.checks.remove(&h.hook) }
	return initialized(h, h.Init())
}

// Init registers the handle with its loop.
func (h *Idle) Init() error { return h.init("idle init", nil) }

// Init registers the handle with its loop.
func (h *Prepare) Init() error { return h.init("prepare init", nil) }

// Init registers the handle with its loop.
func (h *Check) Init() error { return h.init("check init", nil) }

// Start activates the handle. Starting an active handle is a no-op.
func (h *Idle) Start() error { return startHook(&h.Handle, &h.hook, &h.loop.idles, "idle start") }

// Stop deactivates the handle.
func (h *Idle) Stop() error { return stopHook(&h.Handle, &h.hook, &h.loop.idles, "idle stop") }

// Start activates the handle. Starting an active handle is a no-op.
func (h *Prepare) Start() error {
	return startHook(&h.Handle, &h.hook, &h.loop.prepares, "prepare start")
}

// Stop deactivates the handle.
func (h *Prepare) Stop() error {
	return stopHook(&h.Handle, &h.hook, &h.loop.prepares, "prepare stop")
}

// Start activates the handle. Starting an active handle is a no-op.
func (h *Check) Start() error { return startHook(&h.Handle, &h.hook, &h.loop.checks, "check start") }

// Stop deactivates the handle.
func (h *Check) Stop() error { return stopHook(&h.Handle, &h.hook, &h.loop.checks, "check stop") }

func startHook[T any](h *Handle[T], hk *hook, list *hookList, op string) error {
	if err := h.check(op); err != nil {
		return err
	}
	list.add(hk)
	h.setActive(true)
	return nil
}

func stopHook[T any](h *Handle[T], hk *hook, list *hookList, op string) error {
	if err := h.check(op); err != nil {
		return err
	}
	list.remove(hk)
	h.setActive(false)
	return nil
}
