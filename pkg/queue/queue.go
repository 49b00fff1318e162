package queue

import (
	"context"
	"errors"
)

// ErrQueueClosed is returned once a queue has been closed.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a FIFO with any number of producers and a single consumer.
type Queue[T any] interface {
	// Enqueue adds an item to the end of the queue, blocking while it is full.
	Enqueue(item T) error
	// Dequeue removes the item at the front of the queue, blocking until one
	// is available, the queue is closed or ctx is done.
	Dequeue(ctx context.Context) (T, error)
	Size() int
	ReadAllMessages() []T
	Close()
}
