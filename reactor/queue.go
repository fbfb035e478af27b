// File: reactor/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Queue is the hand-off point between helper goroutines and the goroutine
// driving a loop. Producers Post completions from any goroutine; the loop
// drains them in FIFO order between reactor waits.

package reactor

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-uv/api"
)

// Completion is a callback executed on the loop goroutine.
type Completion func()

// Queue is a multi-producer, single-consumer FIFO of completions.
type Queue struct {
	mu      sync.Mutex
	items   *queue.Queue
	reactor api.Reactor
	closed  bool
}

// NewQueue creates a queue that wakes r whenever it goes from empty to
// non-empty.
func NewQueue(r api.Reactor) *Queue {
	return &Queue{items: queue.New(), reactor: r}
}

// Post enqueues fn. It returns false once the queue is closed, in which case
// fn will never run.
func (q *Queue) Post(fn Completion) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.Add(fn)
	first := q.items.Length() == 1
	q.mu.Unlock()
	if first {
		_ = q.reactor.Wake()
	}
	return true
}

// Drain moves every queued completion into buf and returns it.
func (q *Queue) Drain(buf []Completion) []Completion {
	q.mu.Lock()
	for q.items.Length() > 0 {
		buf = append(buf, q.items.Remove().(Completion))
	}
	q.mu.Unlock()
	return buf
}

// Len returns the number of queued completions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Close rejects further posts. Completions already queued stay drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
