// File: uv/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop owns the reactor backend, the timer queue, the completion queue, the
// thread pool and the registry of live resources.

package uv

import (
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/internal/concurrency"
	"github.com/momentics/hioload-uv/reactor"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const poolShutdownTimeout = 5 * time.Second

// Metrics is a snapshot of loop counters.
type Metrics struct {
	Iterations     uint64
	Events         uint64
	EventsWaiting  int
	IdleTime       time.Duration
	ActiveHandles  int
	ActiveRequests int
}

// closable is a handle waiting in the closing list.
type closable interface {
	closeReady() bool
	finishClose()
}

// Loop drives handles and requests from a single goroutine. It publishes
// api.ErrorEvent when the backend itself fails.
type Loop struct {
	em   emitter.Emitter[Loop]
	id   uuid.UUID
	opts options
	log  zerolog.Logger

	clock clock.Clock
	epoch time.Time
	now   time.Duration

	backend api.Reactor
	queue   *reactor.Queue
	pool    *concurrency.ThreadPool
	timers  concurrency.TimerQueue

	idles    hookList
	prepares hookList
	checks   hookList
	polls    map[int]*Poll

	handles    map[uint64]AnyHandle
	requests   map[uint64]AnyRequest
	closing    []closable
	activeRefs int
	seq        uint64

	running  bool
	stopFlag bool
	closed   bool
	data     any

	events      []api.Event
	completions []reactor.Completion
	ready       []*concurrency.TimerEntry
	metrics     Metrics
}

// New creates an isolated loop.
func New(opts ...Option) (*Loop, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	backend, err := reactor.NewReactor()
	if err != nil {
		return nil, errInit("loop", err)
	}
	l := &Loop{
		id:       uuid.New(),
		opts:     o,
		clock:    o.clock,
		backend:  backend,
		polls:    make(map[int]*Poll),
		handles:  make(map[uint64]AnyHandle),
		requests: make(map[uint64]AnyRequest),
		events:   make([]api.Event, o.maxEvents),
	}
	l.em.Bind(l)
	l.log = o.logger.With().Str("loop", l.id.String()).Logger()
	l.queue = reactor.NewQueue(backend)
	l.pool, err = concurrency.NewThreadPool(o.threadPoolSize, l.workPanic)
	if err != nil {
		_ = backend.Close()
		return nil, errInit("loop", err)
	}
	l.epoch = l.clock.Now()
	l.log.Debug().Int("pool", o.threadPoolSize).Msg("loop created")
	return l, nil
}

var (
	defaultMu   sync.Mutex
	defaultLoop *Loop
)

// Default returns the process-wide loop, creating it on first use. The
// embedding application must call ShutdownDefault before exiting.
func Default() (*Loop, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLoop != nil {
		return defaultLoop, nil
	}
	l, err := New()
	if err != nil {
		return nil, err
	}
	defaultLoop = l
	return l, nil
}

// ShutdownDefault closes every handle of the default loop, runs it until they
// are closed and releases it. It is a no-op when Default was never called.
func ShutdownDefault() error {
	defaultMu.Lock()
	l := defaultLoop
	defaultLoop = nil
	defaultMu.Unlock()
	if l == nil {
		return nil
	}
	l.Walk(func(r Resource) {
		if h, ok := r.(AnyHandle); ok {
			h.Close()
		}
	})
	if _, err := l.Run(RunDefault); err != nil {
		return err
	}
	return l.Close()
}

// Emitter exposes the loop's listener table.
func (l *Loop) Emitter() *emitter.Emitter[Loop] {
	return &l.em
}

// ID returns the loop identity used in logs and metrics.
func (l *Loop) ID() uuid.UUID {
	return l.id
}

// Logger returns the loop logger, tagged with the loop id.
func (l *Loop) Logger() *zerolog.Logger {
	return &l.log
}

// Data returns the user value attached with SetData.
func (l *Loop) Data() any {
	return l.data
}

// SetData attaches an arbitrary user value.
func (l *Loop) SetData(v any) {
	l.data = v
}

// Descriptor returns the backend file descriptor, or -1 when the backend has
// none.
func (l *Loop) Descriptor() int {
	return l.backend.Descriptor()
}

// Now returns the cached loop time, updated once per pass.
func (l *Loop) Now() time.Duration {
	return l.now
}

// Update refreshes the cached loop time.
func (l *Loop) Update() {
	l.updateTime()
}

func (l *Loop) updateTime() {
	l.now = l.clock.Since(l.epoch)
}

// Alive reports whether a referenced active handle, a pending request or a
// closing handle exists.
func (l *Loop) Alive() bool {
	return l.activeRefs > 0 || len(l.requests) > 0 || len(l.closing) > 0
}

// Stop makes the current or next Run return after the pass in progress.
func (l *Loop) Stop() {
	l.stopFlag = true
}

// Timeout returns the poll timeout the next pass would use; -1 means block
// until an event arrives.
func (l *Loop) Timeout() time.Duration {
	return l.backendTimeout()
}

// Metrics returns a snapshot of the loop counters.
func (l *Loop) Metrics() Metrics {
	m := l.metrics
	m.EventsWaiting = l.queue.Len()
	m.ActiveHandles = l.activeRefs
	m.ActiveRequests = len(l.requests)
	return m
}

// Walk calls visit for every live handle, then every pending request, in
// creation order. Resources closed by visit are still visited if they were
// live when Walk started.
func (l *Loop) Walk(visit func(Resource)) {
	for _, id := range sortedKeys(l.handles) {
		if h, ok := l.handles[id]; ok {
			visit(h)
		}
	}
	for _, id := range sortedKeys(l.requests) {
		if r, ok := l.requests[id]; ok {
			visit(r)
		}
	}
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Close releases the backend and the thread pool. It fails with ErrBusy while
// any handle is not closed or any request is pending.
func (l *Loop) Close() error {
	const op = "loop close"
	if l.closed {
		return nil
	}
	if l.running {
		return errState(op, "loop is running")
	}
	if len(l.handles) > 0 || len(l.requests) > 0 || len(l.closing) > 0 {
		return api.NewError(api.KindBusy, op, "resources still alive").
			WithContext("handles", len(l.handles)).
			WithContext("requests", len(l.requests))
	}
	l.closed = true
	l.queue.Close()
	err := multierr.Combine(
		l.pool.Close(poolShutdownTimeout),
		l.backend.Close(),
	)
	defaultMu.Lock()
	if defaultLoop == l {
		defaultLoop = nil
	}
	defaultMu.Unlock()
	l.log.Debug().Err(err).Msg("loop closed")
	if err != nil {
		return errOp(op, err)
	}
	return nil
}

func (l *Loop) nextID() uint64 {
	l.seq++
	return l.seq
}

func (l *Loop) registerHandle(h AnyHandle) {
	l.handles[h.ID()] = h
}

func (l *Loop) unregisterHandle(id uint64) {
	delete(l.handles, id)
}

func (l *Loop) registerRequest(r AnyRequest) {
	l.requests[r.ID()] = r
}

func (l *Loop) unregisterRequest(id uint64) {
	delete(l.requests, id)
}

// post queues fn to run on the loop goroutine. Safe for concurrent use.
func (l *Loop) post(fn func()) bool {
	return l.queue.Post(fn)
}

func (l *Loop) workPanic(r any) {
	l.log.Error().Interface("panic", r).Msg("thread pool task panicked")
}
