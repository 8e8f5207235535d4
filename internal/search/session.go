package search

import (
	"sync"
	"time"

	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// Session is the complete state of one keyword search from start to
// finalization. Workers mutate it only through its methods; the presentation
// layer reads frozen Snapshot values.
type Session struct {
	id      string
	request sniffer.SearchRequest
	started time.Time

	mu         sync.Mutex
	status     sniffer.SessionStatus
	results    []sniffer.FontResult
	seen       map[string]struct{}
	stats      sniffer.SearchStats
	totalTasks int
	finished   time.Time
}

// Snapshot is an immutable copy of session state safe to hand across the
// presentation boundary.
type Snapshot struct {
	ID         string                `json:"id"`
	Keyword    string                `json:"keyword"`
	Status     sniffer.SessionStatus `json:"status"`
	Results    []sniffer.FontResult  `json:"results"`
	Stats      sniffer.SearchStats   `json:"stats"`
	TotalTasks int                   `json:"total_tasks"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at,omitempty"`
}

func newSession(id string, request sniffer.SearchRequest, started time.Time) *Session {
	return &Session{
		id:      id,
		request: request,
		started: started,
		status:  sniffer.StatusRunning,
		seen:    make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// addResults appends entries whose DownloadURL has not been seen yet and
// returns how many were added. Ordering follows completion order of the
// extracting workers.
func (s *Session) addResults(batch []sniffer.FontResult) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, r := range batch {
		if r.DownloadURL == "" {
			continue
		}
		if _, dup := s.seen[r.DownloadURL]; dup {
			continue
		}
		s.seen[r.DownloadURL] = struct{}{}
		s.results = append(s.results, r)
		added++
	}
	return added
}

// recordSuccess counts one fully processed page task.
func (s *Session) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Attempted++
	s.stats.Succeeded++
}

// recordFailure counts one page task that failed after retries.
func (s *Session) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Attempted++
	s.stats.Failed++
}

// recordRetry counts a task that needed at least one retry. Called at most
// once per task.
func (s *Session) recordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Retried++
}

func (s *Session) setTotalTasks(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTasks = n
}

// finalize freezes the session with a terminal status. Later calls are
// ignored so a cancellation racing completion keeps the first outcome.
func (s *Session) finalize(status sniffer.SessionStatus, finished time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = status
	s.finished = finished
	s.stats.Elapsed = finished.Sub(s.started)
}

// Status returns the current lifecycle state.
func (s *Session) Status() sniffer.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns an immutable copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		Keyword:    s.request.Keyword,
		Status:     s.status,
		Results:    append([]sniffer.FontResult(nil), s.results...),
		Stats:      s.stats,
		TotalTasks: s.totalTasks,
		StartedAt:  s.started,
		FinishedAt: s.finished,
	}
}
