package sniffer

import (
	"context"
	"time"
)

// Fetcher fetches one listing page and returns its UTF-8 body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor parses one listing page body into font entries. Implementations
// must be pure functions of their input: malformed documents yield an empty
// slice, never an error.
type Extractor interface {
	Extract(body []byte, sourcePage string) []FontResult
	// PageCount reports the highest page number advertised by the document's
	// pager, or 0 when it cannot be determined.
	PageCount(body []byte) int
}

// TaskQueue provides enqueue/dequeue semantics for page tasks. Dequeue
// returns ErrQueueClosed once the queue is closed and drained.
type TaskQueue interface {
	Enqueue(ctx context.Context, task PageTask) error
	Dequeue(ctx context.Context) (PageTask, error)
	Close()
}

// RetryPolicy decides whether a failed fetch should be retried and how long
// to wait before the next attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
