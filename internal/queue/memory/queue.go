// Package memory provides a bounded in-memory page task queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// Queue is a bounded in-memory task queue with context-aware operations.
// After Close, Dequeue drains any buffered tasks and then reports
// sniffer.ErrQueueClosed.
type Queue struct {
	ch      chan sniffer.PageTask
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan sniffer.PageTask, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task sniffer.PageTask) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (sniffer.PageTask, error) {
	select {
	case <-ctx.Done():
		return sniffer.PageTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return sniffer.PageTask{}, sniffer.ErrQueueClosed
		}
		return task, nil
	}
}

// Close marks the queue complete. Safe to call multiple times.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
