// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueueOrdersByDueThenSequence(t *testing.T) {
	var q TimerQueue
	var fired []string
	mk := func(name string) *TimerEntry {
		return NewTimerEntry(func() { fired = append(fired, name) })
	}
	a, b, c := mk("a"), mk("b"), mk("c")
	q.Schedule(c, 30*time.Millisecond)
	q.Schedule(a, 10*time.Millisecond)
	q.Schedule(b, 10*time.Millisecond)

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, next)

	for e := q.PopDue(20 * time.Millisecond); e != nil; e = q.PopDue(20 * time.Millisecond) {
		e.Fire()
	}
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, q.Len())
	assert.False(t, a.Scheduled())
	assert.True(t, c.Scheduled())
}

func TestTimerQueueRescheduleAndRemove(t *testing.T) {
	var q TimerQueue
	a := NewTimerEntry(nil)
	b := NewTimerEntry(nil)
	q.Schedule(a, time.Second)
	q.Schedule(b, 2*time.Second)
	q.Schedule(a, 3*time.Second)

	assert.Same(t, b, q.PopDue(5*time.Second))
	q.Remove(a)
	q.Remove(a)
	assert.Zero(t, q.Len())
	_, ok := q.Next()
	assert.False(t, ok)
}
