// Package queue holds a bounded in-memory hand-off between a producer that
// must not block and a batching consumer.
package queue

import (
	"context"
	"io"
	"sync"
	"time"
)

// EnqueueResult reports what happened to an enqueued item.
type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// MemoryQueue is a bounded channel that sheds load instead of blocking.
type MemoryQueue[T any] struct {
	ch     chan T
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue[T any](capacity int) *MemoryQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue[T]{ch: make(chan T, capacity)}
}

// Enqueue never blocks; a full or closed queue drops item.
func (q *MemoryQueue[T]) Enqueue(item T) EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return EnqueueDropped
	}
	select {
	case q.ch <- item:
		return EnqueueAccepted
	default:
		return EnqueueDropped
	}
}

// DequeueBatch waits up to wait for a first item and then takes whatever else
// is ready, up to maxItems. A non-positive wait only takes what is ready. A
// closed and drained queue returns io.EOF.
func (q *MemoryQueue[T]) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]T, error) {
	first, ok, err := q.first(ctx, wait)
	if err != nil || !ok {
		return nil, err
	}

	batch := []T{first}
	for len(batch) < max(maxItems, 1) {
		select {
		case item, open := <-q.ch:
			if !open {
				return batch, io.EOF
			}
			batch = append(batch, item)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *MemoryQueue[T]) first(ctx context.Context, wait time.Duration) (T, bool, error) {
	var zero T
	select {
	case item, open := <-q.ch:
		if !open {
			return zero, false, io.EOF
		}
		return item, true, nil
	default:
	}
	if wait <= 0 {
		return zero, false, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case item, open := <-q.ch:
		if !open {
			return zero, false, io.EOF
		}
		return item, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case <-timer.C:
		return zero, false, nil
	}
}

func (q *MemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue[T]) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}
