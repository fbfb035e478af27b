// File: uv/resource.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resource is the part shared by handles and requests: the loop binding,
// identity and user data.

package uv

import "github.com/rs/zerolog"

// Resource is implemented by every handle and request.
type Resource interface {
	ID() uint64
	Loop() *Loop
	Closing() bool
	Data() any
	SetData(v any)
}

// AnyHandle is the type-erased view of a handle passed to Walk visitors.
type AnyHandle interface {
	Resource
	Type() HandleType
	State() State
	Active() bool
	Referenced() bool
	Close()
}

// AnyRequest is the type-erased view of a pending request.
type AnyRequest interface {
	Resource
	Type() RequestType
	State() RequestState
}

type resource struct {
	loop *Loop
	id   uint64
	data any
	log  zerolog.Logger
}

func (r *resource) setup(l *Loop, kind, name string) {
	r.loop = l
	r.id = l.nextID()
	r.log = l.log.With().Str(kind, name).Uint64("id", r.id).Logger()
}

// ID returns the loop-unique identifier, increasing in creation order.
func (r *resource) ID() uint64 {
	return r.id
}

// Loop returns the owning loop.
func (r *resource) Loop() *Loop {
	return r.loop
}

// Data returns the user value attached with SetData.
func (r *resource) Data() any {
	return r.data
}

// SetData attaches an arbitrary user value.
func (r *resource) SetData(v any) {
	r.data = v
}

// initialized drops a resource whose Init failed so factories never return
// a partially constructed value.
func initialized[T any](v *T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
