// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOPerProducer(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()
	q := NewQueue(r)

	const producers, perProducer = 4, 200
	var wg sync.WaitGroup
	seen := make([][]int, producers)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				i := i
				q.Post(func() { seen[p] = append(seen[p], i) })
			}
		}(p)
	}
	wg.Wait()

	for _, fn := range q.Drain(nil) {
		fn()
	}
	for p := 0; p < producers; p++ {
		require.Len(t, seen[p], perProducer)
		for i, v := range seen[p] {
			assert.Equal(t, i, v)
		}
	}
	assert.Zero(t, q.Len())
}

func TestQueuePostWakesReactor(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()
	q := NewQueue(r)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Post(func() {})
	}()
	start := time.Now()
	_, err = r.Wait(5*time.Second, make([]api.Event, 4))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, q.Drain(nil), 1)
}

func TestQueueClosedRejectsPost(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()
	q := NewQueue(r)
	require.True(t, q.Post(func() {}))
	q.Close()
	assert.False(t, q.Post(func() {}))
	assert.Len(t, q.Drain(nil), 1)
}
