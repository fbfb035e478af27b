// File: internal/concurrency/timerqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TimerQueue orders timers by due time, breaking ties by insertion sequence
// so timers due at the same instant fire in the order they were started.

package concurrency

import (
	"container/heap"
	"time"
)

// TimerEntry is a scheduled timer. Due is relative to the owner's epoch.
type TimerEntry struct {
	Due   time.Duration
	Fire  func()
	seq   uint64
	index int
}

// Scheduled reports whether the entry is queued.
func (e *TimerEntry) Scheduled() bool {
	return e.index >= 0
}

type timerHeap []*TimerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].Due != h[j].Due {
		return h[i].Due < h[j].Due
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*TimerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerQueue is a min-heap of timers. Not safe for concurrent use.
type TimerQueue struct {
	h   timerHeap
	seq uint64
}

// NewTimerEntry returns an unscheduled entry.
func NewTimerEntry(fire func()) *TimerEntry {
	return &TimerEntry{Fire: fire, index: -1}
}

// Schedule queues e at due, rescheduling it if already queued.
func (q *TimerQueue) Schedule(e *TimerEntry, due time.Duration) {
	q.seq++
	e.Due = due
	e.seq = q.seq
	if e.Scheduled() {
		heap.Fix(&q.h, e.index)
		return
	}
	heap.Push(&q.h, e)
}

// Remove unqueues e. Removing an unscheduled entry is a no-op.
func (q *TimerQueue) Remove(e *TimerEntry) {
	if e.Scheduled() {
		heap.Remove(&q.h, e.index)
	}
}

// Next returns the earliest due time.
func (q *TimerQueue) Next() (time.Duration, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].Due, true
}

// PopDue unqueues and returns the earliest entry due at or before now.
func (q *TimerQueue) PopDue(now time.Duration) *TimerEntry {
	if len(q.h) == 0 || q.h[0].Due > now {
		return nil
	}
	return heap.Pop(&q.h).(*TimerEntry)
}

// Len returns the number of queued timers.
func (q *TimerQueue) Len() int {
	return len(q.h)
}
