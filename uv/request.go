// File: uv/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request implements the one-shot resource state machine
// Created -> Pending -> Completed | Failed.

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/internal/concurrency"
)

// Request is embedded by every request type; T is the embedding type.
type Request[T any] struct {
	resource
	em   emitter.Emitter[T]
	self *T

	typ   RequestType
	state RequestState
	task  *concurrency.Task
}

func (r *Request[T]) bind(l *Loop, owner *T, typ RequestType) {
	r.setup(l, "request", typ.String())
	r.em.Bind(owner)
	r.self = owner
	r.typ = typ
}

// Emitter exposes the listener table.
func (r *Request[T]) Emitter() *emitter.Emitter[T] {
	return &r.em
}

// Type returns the request type.
func (r *Request[T]) Type() RequestType {
	return r.typ
}

// State returns the lifecycle state.
func (r *Request[T]) State() RequestState {
	return r.state
}

// Closing reports whether the request reached a terminal state.
func (r *Request[T]) Closing() bool {
	return r.state >= RequestCompleted
}

// Pending reports whether the operation was issued and has not completed.
func (r *Request[T]) Pending() bool {
	return r.state == RequestPending
}

// Cancel aborts a request queued on the thread pool that has not started.
// The request then fails with ECANCELED on the next loop pass. Cancel
// returns ErrBusy once the work is running.
func (r *Request[T]) Cancel() error {
	const op = "cancel"
	if r.state != RequestPending {
		return errState(op, "request is not pending")
	}
	if r.task == nil {
		return errState(op, "request is not cancellable")
	}
	if !r.task.Cancel() {
		return api.NewError(api.KindBusy, op, "work already started")
	}
	r.loop.post(func() { r.finish(api.ECANCELED, nil) })
	return nil
}

// start moves the request to Pending and registers it with the loop.
func (r *Request[T]) start(op string) error {
	if r.state != RequestCreated {
		return errState(op, "request already issued")
	}
	if r.loop.closed {
		return errClosed(op)
	}
	r.state = RequestPending
	r.loop.registerRequest(any(r.self).(AnyRequest))
	return nil
}

// abort rolls back start when the submission itself failed.
func (r *Request[T]) abort() {
	r.state = RequestCreated
	r.loop.unregisterRequest(r.id)
}

// finish publishes the single terminal event. success may be nil.
func (r *Request[T]) finish(err error, success func()) {
	if r.state != RequestPending {
		return
	}
	defer r.loop.unregisterRequest(r.id)
	if err != nil {
		r.state = RequestFailed
		emitter.Publish[api.ErrorEvent, T](r, api.NewErrorEvent(err))
		return
	}
	r.state = RequestCompleted
	if success != nil {
		success()
	}
}

// schedule runs work on the loop's thread pool and completes the request
// with its result.
func (r *Request[T]) schedule(op string, work func() error, success func()) error {
	if err := r.start(op); err != nil {
		return err
	}
	l := r.loop
	task, err := l.pool.Submit(func() {
		werr := work()
		l.post(func() { r.finish(werr, success) })
	})
	if err != nil {
		r.abort()
		return errOp(op, err)
	}
	r.task = task
	return nil
}
