// File: api/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Events every resource can publish.

package api

// CloseEvent is published exactly once by a handle after Close completes.
type CloseEvent struct{}

// ErrorEvent is published when an operation of a resource fails after it was
// successfully issued. Nobody listening means the event is dropped.
type ErrorEvent struct {
	Code ErrorCode
	Err  error // native cause, may be nil
}

// NewErrorEvent builds an ErrorEvent from a Go error.
func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{Code: Translate(err), Err: err}
}

// CodeEvent builds an ErrorEvent from a bare code.
func CodeEvent(code ErrorCode) ErrorEvent {
	return ErrorEvent{Code: code}
}

// Name returns the symbolic error name.
func (e ErrorEvent) Name() string {
	return e.Code.Name()
}

// What returns the human readable error message.
func (e ErrorEvent) What() string {
	return e.Code.Message()
}

// Error implements the error interface.
func (e ErrorEvent) Error() string {
	if e.Err != nil && e.Code == UNKNOWN {
		return e.Err.Error()
	}
	return e.Code.Error()
}

// Unwrap exposes the native cause.
func (e ErrorEvent) Unwrap() error {
	return e.Err
}
