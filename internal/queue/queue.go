package queue

import (
	"context"
	"sync"
)

// Item is the lightweight reference handed from the submission path to the
// worker. All durable state lives in the status store; the queue only
// carries the batch id and the file paths to grade.
type Item struct {
	BatchID string
	Files   []string
}

// Queue is an unbounded FIFO. Enqueue never blocks; Dequeue blocks the
// calling context until an item is available. There is no priority, no
// cancellation and no deduplication: enqueuing the same batch id twice
// yields two independent work items, so callers must hand out unique ids.
type Queue struct {
	mu    sync.Mutex
	items []Item
	ready chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Enqueue appends an item to the back of the queue.
func (q *Queue) Enqueue(it Item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.signal()
}

// Dequeue removes and returns the oldest item, blocking until one is
// available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (Item, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal() // wake the next waiter
			}
			return it, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
