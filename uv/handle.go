// File: uv/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle implements the long-lived resource state machine
// Created -> Initialized -> Active <-> Inactive -> Closing -> Closed.
//
// A handle joins the loop registry on Init and leaves it after CloseEvent is
// published. While registered the loop holds the only reference it needs, so
// a handle whose caller dropped every pointer still receives its callbacks.

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
)

// Handle is embedded by every handle type; T is the embedding type.
type Handle[T any] struct {
	resource
	em   emitter.Emitter[T]
	self *T

	typ        HandleType
	state      State
	referenced bool
	counted    bool // contributes to loop.activeRefs
	inflight   int  // helper operations that will post a completion
	teardown   func()
}

func (h *Handle[T]) bind(l *Loop, owner *T, typ HandleType) {
	h.setup(l, "handle", typ.String())
	h.em.Bind(owner)
	h.self = owner
	h.typ = typ
	h.referenced = true
}

// Emitter exposes the listener table.
func (h *Handle[T]) Emitter() *emitter.Emitter[T] {
	return &h.em
}

// Type returns the handle type.
func (h *Handle[T]) Type() HandleType {
	return h.typ
}

// State returns the lifecycle state.
func (h *Handle[T]) State() State {
	return h.state
}

// Active reports whether the reactor may deliver events without a new call.
func (h *Handle[T]) Active() bool {
	return h.state == StateActive
}

// Closing reports whether Close was called, even if not yet completed.
func (h *Handle[T]) Closing() bool {
	return h.state >= StateClosing
}

// Referenced reports whether the handle counts toward the loop exit condition.
func (h *Handle[T]) Referenced() bool {
	return h.referenced
}

// Reference makes the handle count toward the loop exit condition.
func (h *Handle[T]) Reference() {
	h.referenced = true
	h.recount()
}

// Unreference excludes the handle from the loop exit condition without
// changing its state.
func (h *Handle[T]) Unreference() {
	h.referenced = false
	h.recount()
}

// Close requests the handle to close. Operations in flight drain first and
// CloseEvent is published exactly once from the loop's closing phase.
// Subsequent calls are no-ops.
func (h *Handle[T]) Close() {
	if h.state >= StateClosing {
		return
	}
	h.state = StateClosing
	h.recount()
	if h.teardown != nil {
		h.teardown()
	}
	h.loop.closing = append(h.loop.closing, h)
	h.log.Debug().Msg("closing")
}

func (h *Handle[T]) closeReady() bool {
	return h.inflight == 0
}

func (h *Handle[T]) finishClose() {
	h.state = StateClosed
	defer h.loop.unregisterHandle(h.id)
	emitter.Publish[api.CloseEvent, T](h, api.CloseEvent{})
}

// init runs the native allocation once and registers the handle.
func (h *Handle[T]) init(op string, native func() error) error {
	switch h.state {
	case StateCreated:
	case StateClosed:
		return errClosed(op)
	default:
		return api.NewError(api.KindAlreadyInitialized, op, "")
	}
	if h.loop.closed {
		return errInit(op, api.EBADF)
	}
	if native != nil {
		if err := native(); err != nil {
			h.log.Debug().Err(err).Msg("init failed")
			return errInit(op, err)
		}
	}
	h.state = StateInitialized
	h.loop.registerHandle(any(h.self).(AnyHandle))
	return nil
}

// check rejects operations on handles that are not initialized or closing.
func (h *Handle[T]) check(op string) error {
	switch h.state {
	case StateClosed:
		return errClosed(op)
	case StateClosing:
		return errState(op, "handle is closing")
	case StateCreated:
		return errState(op, "handle is not initialized")
	}
	return nil
}

func (h *Handle[T]) setActive(on bool) {
	if h.state >= StateClosing || h.state == StateCreated {
		return
	}
	if on {
		h.state = StateActive
	} else if h.state == StateActive {
		h.state = StateInactive
	}
	h.recount()
}

func (h *Handle[T]) recount() {
	want := h.state == StateActive && h.referenced
	if want == h.counted {
		return
	}
	h.counted = want
	if want {
		h.loop.activeRefs++
	} else {
		h.loop.activeRefs--
	}
}

func (h *Handle[T]) begin() {
	h.inflight++
}

func (h *Handle[T]) end() {
	h.inflight--
}

// fail publishes err as an ErrorEvent. Failures observed while closing are
// reported as cancellations.
func (h *Handle[T]) fail(err error) {
	ev := api.NewErrorEvent(err)
	if h.state >= StateClosing {
		ev.Code = api.ECANCELED
	}
	emitter.Publish[api.ErrorEvent, T](h, ev)
}

func (h *Handle[T]) failCode(code api.ErrorCode) {
	emitter.Publish[api.ErrorEvent, T](h, api.CodeEvent(code))
}
