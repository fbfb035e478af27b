// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newLoop(t *testing.T) *uv.Loop {
	t.Helper()
	l, err := uv.New(uv.WithThreadPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(func() {
		l.Walk(func(r uv.Resource) {
			if h, ok := r.(uv.AnyHandle); ok {
				h.Close()
			}
		})
		_, err := l.Run(uv.RunDefault)
		require.NoError(t, err)
		require.NoError(t, l.Close())
	})
	return l
}

func runFor(t *testing.T, l *uv.Loop, d time.Duration, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !done() && time.Now().Before(deadline) {
		_, err := l.Run(uv.RunNoWait)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uv.log")
	log, closer, err := NewLogger(LogConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	log.Debug().Str("k", "v").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)

	log, closer, err = NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
	require.NoError(t, closer.Close())
}

func TestPublishMetricsFeedsCollector(t *testing.T) {
	l := newLoop(t)
	reg := NewMetricsRegistry()
	timer, err := PublishMetrics(l, "main", reg, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, timer.Referenced())
	assert.Contains(t, reg.GetSnapshot(), "main")

	work := uv.NewWork(l, func() error { return nil })
	require.NoError(t, work.Queue())
	_, err = l.Run(uv.RunDefault)
	require.NoError(t, err)
	before := reg.Updated()
	keep, err := uv.NewIdle(l)
	require.NoError(t, err)
	require.NoError(t, keep.Start())
	runFor(t, l, time.Second, func() bool { return reg.Updated().After(before) })
	assert.GreaterOrEqual(t, reg.GetSnapshot()["main"].Iterations, uint64(1))

	promReg := prometheus.NewPedanticRegistry()
	require.NoError(t, promReg.Register(NewLoopCollector("uv", reg)))
	families, err := promReg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		assert.Equal(t, "main", m.GetLabel()[0].GetValue())
		if c := m.GetCounter(); c != nil {
			values[mf.GetName()] = c.GetValue()
		} else {
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.Len(t, values, 6)
	assert.Zero(t, values["uv_loop_active_requests"])
	assert.GreaterOrEqual(t, values["uv_loop_iterations_total"], 1.0)

	timer.Close()
	keep.Close()
	_, err = l.Run(uv.RunDefault)
	require.NoError(t, err)
	assert.NotContains(t, reg.GetSnapshot(), "main")
}

func TestWatchConfigReloadsStore(t *testing.T) {
	l := newLoop(t)
	path := filepath.Join(t.TempDir(), "uv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loop:\n  thread_pool_size: 1\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	store := NewConfigStore(cfg)

	r, err := WatchConfig(l, path, store, testLogger())
	require.NoError(t, err)
	defer r.Close()
	// The watcher handles are unreferenced; an idle handle keeps the loop alive.
	keep, err := uv.NewIdle(l)
	require.NoError(t, err)
	require.NoError(t, keep.Start())
	defer keep.Close()

	// Invalid content is rejected and keeps the previous config.
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))
	runFor(t, l, 300*time.Millisecond, func() bool { return false })
	assert.Equal(t, 1, store.Snapshot().Loop.ThreadPoolSize)

	require.NoError(t, os.WriteFile(path, []byte("loop:\n  thread_pool_size: 6\n"), 0o644))
	runFor(t, l, 5*time.Second, func() bool { return store.Snapshot().Loop.ThreadPoolSize == 6 })
	assert.Equal(t, 6, store.Snapshot().Loop.ThreadPoolSize)
}

func TestDebugProbesDescribeLoop(t *testing.T) {
	l := newLoop(t)
	timer, err := uv.NewTimer(l)
	require.NoError(t, err)
	fired := false
	emitter.On(timer, func(uv.TimerEvent, *uv.Timer) { fired = true })
	require.NoError(t, timer.Start(time.Hour, 0))

	dp := NewDebugProbes()
	RegisterRuntimeProbes(dp)
	RegisterLoopProbes(dp, l)
	state := dp.DumpState()

	prefix := "loop." + l.ID().String()
	assert.Equal(t, true, state[prefix+".alive"])
	assert.Equal(t, map[string]int{"timer": 1}, state[prefix+".handles"])
	assert.Positive(t, state["runtime.cpus"])
	assert.False(t, fired)
}
