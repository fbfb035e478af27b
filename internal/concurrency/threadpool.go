// File: internal/concurrency/threadpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ThreadPool runs blocking work (file system, DNS, user tasks) off the loop
// goroutine. Workers come from an ants pool; submissions beyond its capacity
// wait in a FIFO backlog instead of blocking the submitter.

package concurrency

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/panjf2000/ants/v2"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("concurrency: thread pool closed")

// TaskFunc is a unit of blocking work.
type TaskFunc func()

const (
	taskQueued int32 = iota
	taskRunning
	taskDone
	taskCanceled
)

// Task is a handle to submitted work.
type Task struct {
	fn    TaskFunc
	state atomic.Int32
}

// Cancel prevents a queued task from running. It reports false once the task
// started.
func (t *Task) Cancel() bool {
	return t.state.CompareAndSwap(taskQueued, taskCanceled)
}

// Started reports whether the task began executing.
func (t *Task) Started() bool {
	s := t.state.Load()
	return s == taskRunning || s == taskDone
}

func (t *Task) run() {
	if !t.state.CompareAndSwap(taskQueued, taskRunning) {
		return
	}
	defer t.state.Store(taskDone)
	t.fn()
}

const idleWorkerExpiry = 10 * time.Second

// ThreadPool is safe for concurrent use.
type ThreadPool struct {
	pool    *ants.Pool
	onPanic func(any)
	mu      sync.Mutex
	backlog *queue.Queue
	active  int // workers inside work, guarded by mu
	closed  bool

	submitted atomic.Int64
	completed atomic.Int64
}

// NewThreadPool creates a pool with size workers; size <= 0 means
// runtime.NumCPU(). onPanic receives values recovered from tasks.
func NewThreadPool(size int, onPanic func(any)) (*ThreadPool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(idleWorkerExpiry),
	)
	if err != nil {
		return nil, err
	}
	return &ThreadPool{pool: p, onPanic: onPanic, backlog: queue.New()}, nil
}

// Submit schedules fn and returns a cancellable handle.
func (tp *ThreadPool) Submit(fn TaskFunc) (*Task, error) {
	t := &Task{fn: fn}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.closed {
		return nil, ErrPoolClosed
	}
	tp.submitted.Add(1)
	if tp.backlog.Length() > 0 {
		tp.backlog.Add(t)
		return t, nil
	}
	for {
		err := tp.pool.Submit(func() { tp.work(t) })
		switch {
		case err == nil:
			tp.active++
			return t, nil
		case !errors.Is(err, ants.ErrPoolOverload):
			tp.submitted.Add(-1)
			return nil, err
		case tp.active >= tp.pool.Cap():
			tp.backlog.Add(t)
			return t, nil
		}
		// A worker left work but has not been returned to ants yet.
		runtime.Gosched()
	}
}

// work runs t and then keeps draining the backlog on the same worker.
func (tp *ThreadPool) work(t *Task) {
	for t != nil {
		if t.state.Load() == taskQueued {
			tp.runOne(t)
		} else {
			tp.completed.Add(1)
		}
		t = tp.next()
	}
}

func (tp *ThreadPool) runOne(t *Task) {
	defer func() {
		tp.completed.Add(1)
		if r := recover(); r != nil {
			t.state.Store(taskDone)
			// swallow panic to keep the worker draining the backlog
			if tp.onPanic != nil {
				tp.onPanic(r)
			}
		}
	}()
	t.run()
}

func (tp *ThreadPool) next() *Task {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.backlog.Length() == 0 {
		tp.active--
		return nil
	}
	return tp.backlog.Remove().(*Task)
}

// Pending returns the number of submitted tasks that have not finished.
func (tp *ThreadPool) Pending() int64 {
	return tp.submitted.Load() - tp.completed.Load()
}

// Running returns the number of busy workers.
func (tp *ThreadPool) Running() int {
	return tp.pool.Running()
}

// Cap returns the worker count.
func (tp *ThreadPool) Cap() int {
	return tp.pool.Cap()
}

// Close cancels backlog tasks and waits up to timeout for running ones.
func (tp *ThreadPool) Close(timeout time.Duration) error {
	tp.mu.Lock()
	if tp.closed {
		tp.mu.Unlock()
		return nil
	}
	tp.closed = true
	for tp.backlog.Length() > 0 {
		tp.backlog.Remove().(*Task).Cancel()
	}
	tp.mu.Unlock()
	return tp.pool.ReleaseTimeout(timeout)
}
