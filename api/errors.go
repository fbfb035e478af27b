// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error taxonomy shared by the loop, its handles and its requests.

package api

import (
	"fmt"
	"strings"
)

// Kind classifies where in a resource lifecycle an error was raised.
type Kind int

const (
	// KindOperation is a runtime failure reported by the native side.
	KindOperation Kind = iota
	// KindInit is a failed native allocation or registration.
	KindInit
	// KindAlreadyInitialized is a second Init on the same resource.
	KindAlreadyInitialized
	// KindInvalidState is an operation the current state forbids.
	KindInvalidState
	// KindClosedHandle is an operation on a closed handle.
	KindClosedHandle
	// KindInvalidArgument is a rejected parameter.
	KindInvalidArgument
	// KindBusy is returned when a resource still has live dependents.
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindOperation:
		return "operation failed"
	case KindInit:
		return "init failed"
	case KindAlreadyInitialized:
		return "already initialized"
	case KindInvalidState:
		return "invalid state"
	case KindClosedHandle:
		return "handle closed"
	case KindInvalidArgument:
		return "invalid argument"
	case KindBusy:
		return "resource busy"
	default:
		return "unknown"
	}
}

// Sentinels matched by kind through errors.Is.
var (
	ErrOperation          = newSentinel(KindOperation)
	ErrInit               = newSentinel(KindInit)
	ErrAlreadyInitialized = newSentinel(KindAlreadyInitialized)
	ErrInvalidState       = newSentinel(KindInvalidState)
	ErrClosedHandle       = newSentinel(KindClosedHandle)
	ErrInvalidArgument    = newSentinel(KindInvalidArgument)
	ErrBusy               = newSentinel(KindBusy)
)

// Error is the structured error value returned synchronously by resources and
// carried by ErrorEvent for asynchronous failures.
type Error struct {
	Kind    Kind
	Code    ErrorCode
	Op      string
	Message string
	Err     error
	Context map[string]any

	sentinel bool
}

func newSentinel(kind Kind) *Error {
	return &Error{Kind: kind, sentinel: true}
}

// NewError creates a structured error without a native cause.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates a structured error around err, translating it to an ErrorCode.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Code: Translate(err), Err: err}
}

// FromCode creates a structured error for a bare native status.
func FromCode(kind Kind, op string, code ErrorCode) *Error {
	return &Error{Kind: kind, Op: op, Code: code}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("uv: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	switch {
	case e.Code != 0:
		b.WriteString(": ")
		b.WriteString(e.Code.Name())
		b.WriteString(" (")
		b.WriteString(e.Code.Message())
		b.WriteString(")")
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Context) > 0 {
		fmt.Fprintf(&b, " (context: %+v)", e.Context)
	}
	return b.String()
}

// Unwrap exposes the native cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind and ErrorCode targets by code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		if t == e {
			return true
		}
		return t.sentinel && t.Kind == e.Kind
	case ErrorCode:
		return t != 0 && t == e.Code
	}
	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
