package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ancylx/FontSniffer/internal/progress"
)

// PrometheusSink exports search progress metrics. It owns all collectors for
// sessions started/completed/running and per-page fetch counters.
type PrometheusSink struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionsRunning   prometheus.Gauge
	sessionRuntime    *prometheus.HistogramVec

	pagesTotal    *prometheus.CounterVec
	pageDuration  *prometheus.HistogramVec
	fontsFound    prometheus.Counter
	sessionsFound *prometheus.HistogramVec

	tracker *sessionTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fontsniffer_sessions_started_total",
			Help: "Total search sessions that have started.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fontsniffer_sessions_completed_total",
			Help: "Total search sessions completed partitioned by result.",
		}, []string{"result"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fontsniffer_sessions_running",
			Help: "Current number of running search sessions.",
		}),
		sessionRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fontsniffer_session_runtime_seconds",
			Help:    "Wall time per finished search session.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		pagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fontsniffer_pages_total",
			Help: "Listing page fetch completions partitioned by outcome.",
		}, []string{"outcome"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fontsniffer_page_duration_seconds",
			Help:    "Page fetch+extract duration partitioned by outcome.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		fontsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fontsniffer_fonts_found_total",
			Help: "Total unique fonts discovered across all sessions.",
		}),
		sessionsFound: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fontsniffer_session_results",
			Help:    "Unique fonts per finished session.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"result"}),
		tracker: newSessionTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsCompleted,
		s.sessionsRunning,
		s.sessionRuntime,
		s.pagesTotal,
		s.pageDuration,
		s.fontsFound,
		s.sessionsFound,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StagePageDone:
		s.handlePageEvent(evt)
	default:
		s.handleSessionEvent(evt)
	}
}

func (s *PrometheusSink) handleSessionEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.Inc()
		if s.tracker.start(evt.SessionID) {
			s.sessionsRunning.Inc()
		}
		return
	case progress.StageSessionDone:
		s.finishSession(evt, "success")
	case progress.StageSessionCanceled:
		s.finishSession(evt, "canceled")
	case progress.StageSessionError:
		s.finishSession(evt, "error")
	}
	if s.tracker.complete(evt.SessionID) {
		s.sessionsRunning.Dec()
	}
}

func (s *PrometheusSink) finishSession(evt progress.Event, result string) {
	s.sessionsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.sessionRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	s.sessionsFound.WithLabelValues(result).Observe(float64(evt.Found))
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	outcome := string(evt.Outcome)
	if outcome == "" {
		outcome = string(progress.OutcomeConnection)
	}
	s.pagesTotal.WithLabelValues(outcome).Inc()
	if evt.Dur > 0 {
		s.pageDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
	if evt.Found > 0 {
		s.fontsFound.Add(float64(evt.Found))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type sessionTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{running: make(map[string]struct{})}
}

func (t *sessionTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *sessionTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
