// Package sniffer defines core types shared across subsystems.
package sniffer

import (
	"net/http"
	"time"
)

// SessionStatus represents the lifecycle state of a search session.
type SessionStatus string

// Session status values reported to the presentation layer.
const (
	StatusRunning        SessionStatus = "running"
	StatusCompleted      SessionStatus = "completed"
	StatusCanceled       SessionStatus = "canceled"
	StatusInvalidKeyword SessionStatus = "invalid_keyword"
)

// Terminal reports whether the status marks a finalized session.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusInvalidKeyword
}

// SearchRequest captures the user-supplied knobs for one search. It is
// immutable once the search starts.
type SearchRequest struct {
	// Keyword is matched case-insensitively against font names.
	Keyword string
	// ThreadCount is the worker pool size, clamped to [MinThreads, MaxThreads].
	ThreadCount int
	// Timeout bounds each individual page fetch.
	Timeout time.Duration
	// MaxPages caps the number of listing pages to visit. Zero means the
	// orchestrator detects the total from the site's pager.
	MaxPages int
}

// Worker pool bounds enforced on SearchRequest.ThreadCount.
const (
	MinThreads = 1
	MaxThreads = 32
)

// ClampedThreads returns ThreadCount forced into the supported range.
func (r SearchRequest) ClampedThreads() int {
	switch {
	case r.ThreadCount < MinThreads:
		return MinThreads
	case r.ThreadCount > MaxThreads:
		return MaxThreads
	default:
		return r.ThreadCount
	}
}

// PageTask is one unit of fetch+extract work for a single listing page.
// Tasks are produced by the planner and consumed exactly once by a worker.
type PageTask struct {
	URL       string
	PageIndex int
}

// FontResult is a deduplicated (name, download page) pair discovered during
// a search. DownloadURL is the uniqueness key.
type FontResult struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	SourcePage  string `json:"source_page"`
}

// SearchStats tracks per-session fetch outcomes. At finalization
// Attempted == Succeeded + Failed always holds; Retried counts tasks that
// needed at least one retry before resolving either way.
type SearchStats struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Retried   int           `json:"retried"`
	Elapsed   time.Duration `json:"elapsed"`
}

// FetchRequest captures everything needed to fetch one listing page.
type FetchRequest struct {
	SessionID string
	URL       string
	PageIndex int
	Headers   http.Header
}

// FetchResponse is the result returned by a Fetcher implementation. Body is
// always UTF-8 regardless of the page's declared charset.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
