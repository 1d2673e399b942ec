// Package queue is the unbounded FIFO that carries proposal paths from the
// watcher to the worker. Push never blocks, so a burst of arrivals cannot
// stall the watcher.
package queue

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/scribo/pkg/types"
)

// Queue is a FIFO of proposal paths with one or more consumers.
type Queue struct {
	mu     sync.Mutex
	items  []string
	closed bool
	ready  chan struct{}
}

// New returns an empty, open queue.
func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends path. It returns ErrQueueClosed once Close has been called.
func (q *Queue) Push(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return types.ErrQueueClosed
	}
	q.items = append(q.items, path)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the oldest path, waiting until one is available.
// It returns false when ctx is done, or when the queue is closed and drained.
func (q *Queue) Pop(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			path := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return path, true
		}
		if q.closed {
			q.mu.Unlock()
			return "", false
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return "", false
		}
	}
}

// signal wakes another consumer if the queue is still open.
func (q *Queue) signal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Close stops accepting new paths. Paths already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

// Len is the number of queued paths.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
