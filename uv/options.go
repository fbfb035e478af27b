// File: uv/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options accepted by New.

package uv

import (
	"runtime"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Option configures a Loop.
type Option func(*options)

type options struct {
	clock          clock.Clock
	logger         zerolog.Logger
	threadPoolSize int
	maxEvents      int
	panicHandler   func(any)
}

func defaultOptions() options {
	return options{
		clock:          clock.New(),
		logger:         zerolog.Nop(),
		threadPoolSize: runtime.NumCPU(),
		maxEvents:      128,
	}
}

// WithClock replaces the monotonic time source. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the structured logger used by the loop and its resources.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithThreadPoolSize bounds the goroutines running blocking work.
func WithThreadPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.threadPoolSize = n
		}
	}
}

// WithMaxEvents sets how many readiness events one poll can return.
func WithMaxEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEvents = n
		}
	}
}

// WithPanicHandler recovers listener panics instead of letting them unwind
// Run. The handler runs on the loop goroutine.
func WithPanicHandler(fn func(any)) Option {
	return func(o *options) { o.panicHandler = fn }
}
