// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package uv

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEmptyLoopReturnsImmediately(t *testing.T) {
	l := newTestLoop(t)
	alive, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.False(t, l.Alive())
}

func TestRunDefaultExitsAfterOneShotTimer(t *testing.T) {
	l := newTestLoop(t)
	timer, err := NewTimer(l)
	require.NoError(t, err)

	fired := 0
	emitter.On(timer, func(TimerEvent, *Timer) { fired++ })
	require.NoError(t, timer.Start(10*time.Millisecond, 0))

	start := time.Now()
	alive, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, 1, fired)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, StateInactive, timer.State())
}

func TestUnreferencedTimerDoesNotKeepLoopAlive(t *testing.T) {
	l := newTestLoop(t)
	timer, err := NewTimer(l)
	require.NoError(t, err)
	emitter.On(timer, func(TimerEvent, *Timer) { t.Fatal("timer fired") })
	require.NoError(t, timer.Start(time.Hour, 0))
	timer.Unreference()

	assert.True(t, timer.Active())
	assert.False(t, timer.Referenced())
	assert.False(t, l.Alive())

	done := make(chan struct{})
	go func() {
		defer close(done)
		alive, err := l.Run(RunDefault)
		assert.NoError(t, err)
		assert.False(t, alive)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run blocked on an unreferenced timer")
	}

	timer.Reference()
	assert.True(t, l.Alive())
}

func TestRunNoWaitDoesNotBlock(t *testing.T) {
	l := newTestLoop(t)
	timer, err := NewTimer(l)
	require.NoError(t, err)
	require.NoError(t, timer.Start(time.Hour, 0))

	start := time.Now()
	alive, err := l.Run(RunNoWait)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRunOnceBlocksUntilTimer(t *testing.T) {
	l := newTestLoop(t)
	timer, err := NewTimer(l)
	require.NoError(t, err)
	fired := 0
	emitter.On(timer, func(TimerEvent, *Timer) { fired++ })
	require.NoError(t, timer.Start(5*time.Millisecond, 0))

	alive, err := l.Run(RunOnce)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, 1, fired)
}

func TestRunIsNotReentrant(t *testing.T) {
	l := newTestLoop(t)
	timer, err := NewTimer(l)
	require.NoError(t, err)
	var inner error
	emitter.On(timer, func(TimerEvent, *Timer) {
		_, inner = l.Run(RunNoWait)
	})
	require.NoError(t, timer.Start(0, 0))
	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, api.ErrInvalidState)
}

func TestStopEndsRunWithWorkLeft(t *testing.T) {
	l := newTestLoop(t)
	timer, err := NewTimer(l)
	require.NoError(t, err)
	ticks := 0
	emitter.On(timer, func(_ TimerEvent, tm *Timer) {
		ticks++
		if ticks == 3 {
			tm.Loop().Stop()
		}
	})
	require.NoError(t, timer.Start(time.Millisecond, time.Millisecond))

	alive, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Equal(t, 3, ticks)
	assert.True(t, timer.Active())
}

func TestLoopCloseBusyUntilHandlesClosed(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	timer, err := NewTimer(l)
	require.NoError(t, err)

	err = l.Close()
	assert.ErrorIs(t, err, api.ErrBusy)

	closed := 0
	emitter.On(timer, func(api.CloseEvent, *Timer) { closed++ })
	timer.Close()
	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err = l.Run(RunDefault)
	assert.ErrorIs(t, err, api.ErrClosedHandle)
	_, err = NewTimer(l)
	assert.ErrorIs(t, err, api.ErrInit)
}

func TestWalkVisitsHandlesThenRequestsInCreationOrder(t *testing.T) {
	l := newTestLoop(t)
	idle, err := NewIdle(l)
	require.NoError(t, err)
	timer, err := NewTimer(l)
	require.NoError(t, err)

	release := make(chan struct{})
	work := NewWork(l, func() error { <-release; return nil })
	require.NoError(t, work.Queue())
	check, err := NewCheck(l)
	require.NoError(t, err)

	var seen []uint64
	l.Walk(func(r Resource) {
		if h, ok := r.(AnyHandle); ok {
			h.Close()
		}
		seen = append(seen, r.ID())
	})
	assert.Equal(t, []uint64{idle.ID(), timer.ID(), check.ID(), work.ID()}, seen)
	assert.True(t, idle.Closing())
	assert.True(t, check.Closing())

	close(release)
	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	assert.Equal(t, RequestCompleted, work.State())

	seen = seen[:0]
	l.Walk(func(r Resource) { seen = append(seen, r.ID()) })
	assert.Empty(t, seen)
}

func TestDefaultLoopIsShared(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)
	assert.Same(t, a, b)

	timer, err := NewTimer(a)
	require.NoError(t, err)
	require.NoError(t, timer.Start(time.Hour, 0))
	closed := false
	emitter.On(timer, func(api.CloseEvent, *Timer) { closed = true })

	require.NoError(t, ShutdownDefault())
	assert.True(t, closed)
	assert.True(t, a.closed)

	c, err := Default()
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	require.NoError(t, ShutdownDefault())
	require.NoError(t, ShutdownDefault())
}

func TestListenerPanicPropagates(t *testing.T) {
	l := newTestLoop(t)
	timer, err := NewTimer(l)
	require.NoError(t, err)
	emitter.On(timer, func(TimerEvent, *Timer) { panic("listener") })
	require.NoError(t, timer.Start(0, 0))

	assert.PanicsWithValue(t, "listener", func() { _, _ = l.Run(RunDefault) })
	assert.False(t, l.running)
}

func TestPanicHandlerRecoversListenerPanics(t *testing.T) {
	var recovered []any
	l := newTestLoop(t, WithPanicHandler(func(r any) { recovered = append(recovered, r) }))
	timer, err := NewTimer(l)
	require.NoError(t, err)
	after := false
	emitter.On(timer, func(TimerEvent, *Timer) { panic(errors.New("boom")) })
	emitter.On(timer, func(api.CloseEvent, *Timer) { after = true })
	require.NoError(t, timer.Start(0, 0))

	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.EqualError(t, recovered[0].(error), "boom")

	timer.Close()
	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	assert.True(t, after)
}

func TestLoopDataAndMetrics(t *testing.T) {
	l := newTestLoop(t)
	l.SetData("payload")
	assert.Equal(t, "payload", l.Data())
	assert.NotEqual(t, [16]byte{}, [16]byte(l.ID()))

	timer, err := NewTimer(l)
	require.NoError(t, err)
	require.NoError(t, timer.Start(time.Millisecond, 0))
	assert.Equal(t, 1, l.Metrics().ActiveHandles)

	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	m := l.Metrics()
	assert.GreaterOrEqual(t, m.Iterations, uint64(1))
	assert.Zero(t, m.ActiveHandles)
	assert.Zero(t, m.ActiveRequests)
}

func TestTimeoutReflectsNextTimer(t *testing.T) {
	l, mock := newMockLoop(t)
	assert.Equal(t, time.Duration(0), l.Timeout())

	timer, err := NewTimer(l)
	require.NoError(t, err)
	require.NoError(t, timer.Start(50*time.Millisecond, 0))
	assert.Equal(t, 50*time.Millisecond, l.Timeout())

	mock.Add(20 * time.Millisecond)
	l.Update()
	assert.Equal(t, 20*time.Millisecond, l.Now())
	assert.Equal(t, 30*time.Millisecond, l.Timeout())

	l.Stop()
	assert.Equal(t, time.Duration(0), l.Timeout())
	_, err = l.Run(RunNoWait)
	require.NoError(t, err)

	idle, err := NewIdle(l)
	require.NoError(t, err)
	require.NoError(t, idle.Start())
	assert.Equal(t, time.Duration(0), l.Timeout())
}

func TestLoggerCarriesLoopID(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLoop(t, WithLogger(zerolog.New(&buf)))
	l.Logger().Info().Msg("hello")
	assert.Contains(t, buf.String(), `"loop":"`+l.ID().String()+`"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}
