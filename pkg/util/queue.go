// pkg/util/queue.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"context"
	"slices"
	"sync"
)

// Queue is an unbounded FIFO that is safe for concurrent use. Enqueue
// never blocks; Take blocks until an item is available or the provided
// context is cancelled.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	// ready is closed and cleared when an item is enqueued so that all
	// goroutines blocked in Take wake up and compete for it.
	ready chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Enqueue(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, items...)
	if q.ready != nil && len(q.items) > 0 {
		close(q.ready)
		q.ready = nil
	}
}

// Take removes and returns the item at the head of the queue, waiting
// for one to arrive if the queue is empty. If ctx is cancelled first, the
// zero value and ctx.Err() are returned.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	for {
		// Don't hand out items after cancellation, even if some are
		// available.
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}

		q.mu.Lock()
		if v, ok := q.pop(); ok {
			q.mu.Unlock()
			return v, nil
		}
		if q.ready == nil {
			q.ready = make(chan struct{})
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-ready:
		}
	}
}

// TryTake returns the item at the head of the queue if there is one.
func (q *Queue[T]) TryTake() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

func (q *Queue[T]) pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Drop the backing array once drained.
		q.items = q.items[:0:0]
	}
	return v, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queue's current contents, head first.
func (q *Queue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}
