package sniffer

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies fetch failures for stats and logging.
type FetchErrorKind string

// Supported fetch failure classes.
const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchConnection FetchErrorKind = "connection"
	FetchHTTPStatus FetchErrorKind = "http_status"
)

// FetchError is the typed failure returned by Fetcher implementations.
// StatusCode is set only for FetchHTTPStatus.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == FetchHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

// Unwrap exposes the underlying transport error for errors.Is/As chains.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError extracts a *FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ErrInvalidKeyword marks a session-level failure: the keyword cannot produce
// any page task. It is fatal to that session only and surfaces as
// StatusInvalidKeyword rather than as an error from Run.
var ErrInvalidKeyword = errors.New("invalid search keyword")

// ErrQueueClosed is returned by TaskQueue.Dequeue once all tasks are consumed.
var ErrQueueClosed = errors.New("task queue closed")
