// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package queue serializes user submissions into one conversational
// turn at a time. At most one message is ever in flight; everything
// else waits in FIFO order. Stop discards queued work and suppresses
// the in-flight turn's callbacks without preempting its network or
// tool activity.
package queue

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// TYPES
// =============================================================================

// QueuedMessage is one user submission waiting for, or undergoing,
// processing.
type QueuedMessage struct {
	ID         string
	Content    string
	Files      []string
	EnqueuedAt time.Time
}

// Processor performs the full orchestration round for one message and
// returns the assistant's reply text.
type Processor func(ctx context.Context, msg QueuedMessage) (string, error)

// Callbacks receive queue lifecycle events. Any callback may be nil.
// OnMessageComplete, OnMessageError, and OnQueueEmpty are suppressed
// for turns cancelled by Stop.
type Callbacks struct {
	OnMessageStart    func(msg QueuedMessage)
	OnMessageComplete func(msg QueuedMessage, reply string)
	OnMessageError    func(msg QueuedMessage, err error)
	OnQueueEmpty      func()
	OnStopped         func(discarded int)
}

// Queue is a sequential message queue. Safe for concurrent use.
type Queue struct {
	mu         sync.Mutex
	pending    []QueuedMessage
	processing bool
	stopped    bool
	// generation increments on Stop; a turn whose generation no longer
	// matches at completion time has been cancelled and stays silent.
	generation int

	ctx       context.Context
	processor Processor
	callbacks Callbacks
}

// New builds a queue. ctx is handed to the processor for every turn.
func New(ctx context.Context, processor Processor, callbacks Callbacks) *Queue {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Queue{
		ctx:       ctx,
		processor: processor,
		callbacks: callbacks,
	}
}

// =============================================================================
// QUEUE OPERATIONS
// =============================================================================

// messageSeq keeps IDs process-unique even when two submissions share
// a timestamp.
var messageSeq atomic.Uint64

// newMessageID composes a message ID from a monotonic counter and the
// enqueue timestamp.
func newMessageID(now time.Time) string {
	return "msg-" + strconv.FormatUint(messageSeq.Add(1), 10) +
		"-" + strconv.FormatInt(now.UnixNano(), 10)
}

// Enqueue appends a message and returns its ID. A new submission
// always clears the stopped flag; if the queue is idle, processing
// begins immediately.
func (q *Queue) Enqueue(content string, files []string) string {
	now := time.Now()
	msg := QueuedMessage{
		ID:         newMessageID(now),
		Content:    content,
		Files:      files,
		EnqueuedAt: now,
	}

	q.mu.Lock()
	q.stopped = false
	q.pending = append(q.pending, msg)
	start := !q.processing
	if start {
		q.processing = true
	}
	q.mu.Unlock()

	if start {
		go q.run()
	}
	return msg.ID
}

// Stop marks the queue stopped, discards all queued-but-unstarted
// messages, and returns how many were dropped. The in-flight turn is
// allowed to finish its work but its callbacks will not fire. Stop
// never fails.
func (q *Queue) Stop() int {
	q.mu.Lock()
	q.stopped = true
	q.generation++
	discarded := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	if q.callbacks.OnStopped != nil {
		q.callbacks.OnStopped(discarded)
	}
	return discarded
}

// Len reports how many messages are waiting, excluding the one in
// flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsProcessing reports whether a turn is currently in flight.
func (q *Queue) IsProcessing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// =============================================================================
// PROCESSING LOOP
// =============================================================================

// run drains the queue one message at a time. There is at most one run
// goroutine alive; it exits when the queue empties or is stopped.
func (q *Queue) run() {
	for {
		q.mu.Lock()
		if q.stopped || len(q.pending) == 0 {
			q.processing = false
			emitEmpty := !q.stopped && len(q.pending) == 0
			q.mu.Unlock()
			if emitEmpty && q.callbacks.OnQueueEmpty != nil {
				q.callbacks.OnQueueEmpty()
			}
			return
		}
		msg := q.pending[0]
		q.pending = q.pending[1:]
		gen := q.generation
		q.mu.Unlock()

		if q.callbacks.OnMessageStart != nil {
			q.callbacks.OnMessageStart(msg)
		}

		reply, err := q.processor(q.ctx, msg)

		q.mu.Lock()
		cancelled := q.stopped || q.generation != gen
		q.mu.Unlock()
		if cancelled {
			continue
		}

		if err != nil {
			if q.callbacks.OnMessageError != nil {
				q.callbacks.OnMessageError(msg, err)
			}
		} else if q.callbacks.OnMessageComplete != nil {
			q.callbacks.OnMessageComplete(msg, reply)
		}
	}
}
