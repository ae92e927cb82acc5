// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/opentalk-tui/internal/event"
)

// ErrClosed is returned by Enqueue after Close, and by Next once a closed
// queue has been drained.
var ErrClosed = errors.New("dispatch: queue closed")

// =============================================================================
// QUEUE
// =============================================================================

// Queue is an unbounded multi-producer, single-consumer FIFO of events.
//
// Enqueue may be called from any goroutine and never waits on the consumer.
// Events from one producer are delivered in the order that producer enqueued
// them. No order is promised between producers. Each event is delivered
// exactly once.
type Queue struct {
	mu     sync.Mutex
	items  []event.Event
	closed bool

	// notify holds at most one pending wakeup for the consumer.
	notify chan struct{}
	done   chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends an event. It takes ownership of e.
func (q *Queue) Enqueue(e event.Event) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
		// A wakeup is already pending
	}
	return nil
}

// Next blocks until an event is available and hands it to the caller.
// It returns ctx.Err() if the context ends first, and ErrClosed once the
// queue is closed and empty. Only one goroutine may call Next.
func (q *Queue) Next(ctx context.Context) (event.Event, error) {
	for {
		if e, ok, closed := q.pop(); ok {
			return e, nil
		} else if closed {
			return event.Event{}, ErrClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return event.Event{}, ctx.Err()
		}
	}
}

// pop removes the head event. The vacated slot is zeroed so the queue keeps
// no reference to a payload it has handed out.
func (q *Queue) pop() (e event.Event, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return event.Event{}, false, q.closed
	}

	e = q.items[0]
	q.items[0] = event.Event{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return e, true, q.closed
}

// Len returns the number of undelivered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting events. Events already queued are still delivered.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
