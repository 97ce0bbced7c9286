// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This file contains tests for concurrent queue access:
// - Parallel enqueue from many goroutines
// - Stop racing against enqueue
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestQueue_ConcurrentEnqueue verifies that hammering Enqueue from
// many goroutines loses no messages and never overlaps processing.
func TestQueue_ConcurrentEnqueue(t *testing.T) {
	var inFlight int32
	var maxInFlight int32
	var processed int32

	processor := func(ctx context.Context, msg QueuedMessage) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&processed, 1)
		return "ok", nil
	}

	q := New(context.Background(), processor, Callbacks{})

	const writers = 10
	const perWriter = 5

	var wg sync.WaitGroup
	ids := make(chan string, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				ids <- q.Enqueue("msg", nil)
			}
		}(w)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate queue id %s", id)
		seen[id] = true
	}
	require.Len(t, seen, writers*perWriter)

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&processed) < writers*perWriter {
		require.True(t, time.Now().Before(deadline), "queue did not drain")
		time.Sleep(5 * time.Millisecond)
	}

	require.EqualValues(t, 1, atomic.LoadInt32(&maxInFlight),
		"messages must process one at a time")
}

// TestQueue_StopDuringEnqueue races Stop against Enqueue and checks
// the queue stays usable afterwards.
func TestQueue_StopDuringEnqueue(t *testing.T) {
	processor := func(ctx context.Context, msg QueuedMessage) (string, error) {
		time.Sleep(time.Millisecond)
		return "ok", nil
	}

	q := New(context.Background(), processor, Callbacks{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue("racer", nil)
		}()
		if i%5 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.Stop()
			}()
		}
	}
	wg.Wait()

	// A fresh enqueue after the dust settles must still process, since
	// Enqueue clears the stopped flag.
	q.Enqueue("after", nil)

	deadline := time.Now().Add(5 * time.Second)
	for q.Len() > 0 || q.IsProcessing() {
		require.True(t, time.Now().Before(deadline), "queue unusable after concurrent stop")
		time.Sleep(5 * time.Millisecond)
	}
}
