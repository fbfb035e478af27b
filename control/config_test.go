// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigOverDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
loop:
  thread_pool_size: 8
  recover_panics: true
metrics:
  enabled: true
  listen: "127.0.0.1:9100"
  interval: 250ms
`))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Loop.ThreadPoolSize)
	assert.True(t, cfg.Loop.RecoverPanics)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "uv", cfg.Metrics.Namespace)
	assert.Equal(t, 250*time.Millisecond, cfg.Metrics.Interval)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad level":       "log:\n  level: loud\n",
		"bad format":      "log:\n  format: xml\n",
		"pool too large":  "loop:\n  thread_pool_size: 5000\n",
		"negative events": "loop:\n  max_events: -1\n",
		"metrics no addr": "metrics:\n  enabled: true\n",
		"bad listen":      "metrics:\n  listen: nowhere\n",
		"not yaml":        "loop: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoopOptionsBuildLoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loop.ThreadPoolSize = 2
	cfg.Loop.MaxEvents = 16
	cfg.Loop.RecoverPanics = true
	opts := cfg.LoopOptions(testLogger())
	assert.Len(t, opts, 4)
}

func TestConfigStoreNotifiesListeners(t *testing.T) {
	store := NewConfigStore(DefaultConfig())
	var seen []int
	store.OnReload(func(c Config) { seen = append(seen, c.Loop.ThreadPoolSize) })

	next := DefaultConfig()
	next.Loop.ThreadPoolSize = 3
	require.NoError(t, store.SetConfig(next))
	assert.Equal(t, 3, store.Snapshot().Loop.ThreadPoolSize)

	bad := next
	bad.Log.Level = "loud"
	assert.Error(t, store.SetConfig(bad))
	assert.Equal(t, "info", store.Snapshot().Log.Level)
	assert.Equal(t, []int{3}, seen)
}

func TestConfigStoreListenerAddedDuringReload(t *testing.T) {
	store := NewConfigStore(DefaultConfig())
	calls := 0
	store.OnReload(func(Config) {
		calls++
		store.OnReload(func(Config) { calls += 10 })
	})

	require.NoError(t, store.SetConfig(DefaultConfig()))
	assert.Equal(t, 1, calls)
	require.NoError(t, store.SetConfig(DefaultConfig()))
	assert.Equal(t, 12, calls)
}
