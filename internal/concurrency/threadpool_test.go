// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package concurrency

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadPoolRunsBacklogInOrder(t *testing.T) {
	tp, err := NewThreadPool(1, nil)
	require.NoError(t, err)
	defer tp.Close(time.Second)

	release := make(chan struct{})
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(4)
	_, err = tp.Submit(func() { <-release; wg.Done() })
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		i := i
		_, err := tp.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
		require.NoError(t, err)
	}
	close(release)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestThreadPoolCancelQueuedTask(t *testing.T) {
	tp, err := NewThreadPool(1, nil)
	require.NoError(t, err)
	defer tp.Close(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker, err := tp.Submit(func() { close(started); <-release })
	require.NoError(t, err)
	<-started

	ran := make(chan struct{}, 1)
	queued, err := tp.Submit(func() { ran <- struct{}{} })
	require.NoError(t, err)

	assert.False(t, blocker.Cancel())
	assert.True(t, blocker.Started())
	assert.True(t, queued.Cancel())
	assert.False(t, queued.Cancel())
	close(release)

	done := make(chan struct{})
	_, err = tp.Submit(func() { close(done) })
	require.NoError(t, err)
	<-done
	select {
	case <-ran:
		t.Fatal("canceled task ran")
	default:
	}
}

func TestThreadPoolRecoversPanics(t *testing.T) {
	got := make(chan any, 1)
	tp, err := NewThreadPool(1, func(r any) { got <- r })
	require.NoError(t, err)
	defer tp.Close(time.Second)

	_, err = tp.Submit(func() { panic("boom") })
	require.NoError(t, err)
	assert.Equal(t, "boom", <-got)

	done := make(chan struct{})
	_, err = tp.Submit(func() { close(done) })
	require.NoError(t, err)
	<-done
}

func TestThreadPoolClosedRejects(t *testing.T) {
	tp, err := NewThreadPool(2, nil)
	require.NoError(t, err)
	require.NoError(t, tp.Close(time.Second))
	_, err = tp.Submit(func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.NoError(t, tp.Close(time.Second))
}
