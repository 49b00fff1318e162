// queue package

package queue

import (
	"context"
	"sync"
)

const (
	// QueueBufferSize represents the default maximum size of a queue
	QueueBufferSize = 1024
)

// InMemoryQueue implements an in-memory queue over a buffered channel.
// The channel itself is never closed so producers racing with Close cannot
// panic.
type InMemoryQueue[T any] struct {
	ch        chan T
	closed    chan struct{}
	closeOnce sync.Once
}

// NewInMemoryQueue creates a new queue holding at most size items.
func NewInMemoryQueue[T any](size int) *InMemoryQueue[T] {
	if size <= 0 {
		size = QueueBufferSize
	}
	return &InMemoryQueue[T]{
		ch:     make(chan T, size),
		closed: make(chan struct{}),
	}
}

// Enqueue adds an item to the end of the queue.
func (q *InMemoryQueue[T]) Enqueue(item T) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- item:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	}
}

// Dequeue removes and returns the item from the front of the queue. Items
// enqueued before Close are still delivered.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	select {
	case item := <-q.ch:
		return item, nil
	default:
	}

	select {
	case <-q.closed:
		return zero, ErrQueueClosed
	default:
	}

	select {
	case item := <-q.ch:
		return item, nil
	case <-q.closed:
		select {
		case item := <-q.ch:
			return item, nil
		default:
			return zero, ErrQueueClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Size returns the current size of the queue.
func (q *InMemoryQueue[T]) Size() int {
	return len(q.ch)
}

// ReadAllMessages reads all pending messages in the queue without blocking.
func (q *InMemoryQueue[T]) ReadAllMessages() []T {
	var messages []T
	for {
		select {
		case item := <-q.ch:
			messages = append(messages, item)
		default:
			return messages
		}
	}
}

// Close stops the queue from accepting items. It is safe to call more than
// once.
func (q *InMemoryQueue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Closed returns a channel that is closed once the queue is closed.
func (q *InMemoryQueue[T]) Closed() <-chan struct{} {
	return q.closed
}
