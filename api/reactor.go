// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Defines the abstract interface of the native reactor primitive the loop is
// built on: fd readiness, a bounded blocking wait and a cross-goroutine wakeup.

package api

import "time"

// PollFlags describes readiness of a file descriptor.
type PollFlags uint32

const (
	Readable PollFlags = 1 << iota
	Writable
	Disconnect
	Prioritized
)

// Has reports whether all bits of f are set.
func (p PollFlags) Has(f PollFlags) bool {
	return p&f == f
}

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Fd    int
	Flags PollFlags
}

// Reactor is the single-threaded readiness primitive. Wake is the only method
// that may be called from a goroutine other than the one calling Wait.
type Reactor interface {
	// Register starts watching fd for the given readiness flags.
	Register(fd int, flags PollFlags) error

	// Modify replaces the flags watched for fd.
	Modify(fd int, flags PollFlags) error

	// Unregister stops watching fd.
	Unregister(fd int) error

	// Wait blocks up to timeout (negative means forever) and fills events.
	// A Wake call makes a pending or the next Wait return early.
	Wait(timeout time.Duration, events []Event) (int, error)

	// Wake interrupts Wait. Safe for concurrent use.
	Wake() error

	// Descriptor returns the backend file descriptor, or -1.
	Descriptor() int

	// Close releases the backend.
	Close() error
}
