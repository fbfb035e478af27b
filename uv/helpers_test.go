// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package uv

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l, err := New(append([]Option{WithThreadPoolSize(4)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { drain(t, l) })
	return l
}

func newMockLoop(t *testing.T) (*Loop, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	return newTestLoop(t, WithClock(mock)), mock
}

// drain closes whatever the test left open and releases the loop.
func drain(t *testing.T, l *Loop) {
	t.Helper()
	if l.closed {
		return
	}
	l.Walk(func(r Resource) {
		if h, ok := r.(AnyHandle); ok {
			h.Close()
		}
	})
	deadline := time.Now().Add(5 * time.Second)
	for l.Alive() && time.Now().Before(deadline) {
		_, err := l.Run(RunNoWait)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, l.Close())
}

// runUntil drives single passes until cond holds or the deadline passes.
func runUntil(t *testing.T, l *Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "condition not reached")
		_, err := l.Run(RunNoWait)
		require.NoError(t, err)
		if !cond() {
			time.Sleep(time.Millisecond)
		}
	}
}

// guard stops a Run that exceeds d. The timer is unreferenced so it never
// keeps the loop alive on its own.
func guard(t *testing.T, l *Loop, d time.Duration) {
	t.Helper()
	timer, err := NewTimer(l)
	require.NoError(t, err)
	emitter.On(timer, func(_ TimerEvent, tm *Timer) {
		t.Errorf("loop still running after %v", d)
		tm.Loop().Stop()
	})
	require.NoError(t, timer.Start(d, 0))
	timer.Unreference()
}
