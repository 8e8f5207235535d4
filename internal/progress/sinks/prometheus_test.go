package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Ancylx/FontSniffer/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	sessionID := "0190a5a0-0000-7000-8000-0000000000aa"
	batch := []progress.Event{
		{SessionID: sessionID, TS: time.Now(), Stage: progress.StageSessionStart},
		{
			SessionID: sessionID,
			TS:        time.Now(),
			Stage:     progress.StagePageDone,
			Page:      1,
			Found:     3,
			Outcome:   progress.OutcomeSuccess,
			Dur:       200 * time.Millisecond,
		},
		{
			SessionID: sessionID,
			TS:        time.Now(),
			Stage:     progress.StagePageDone,
			Page:      2,
			Outcome:   progress.OutcomeTimeout,
			Dur:       15 * time.Second,
		},
		{
			SessionID: sessionID,
			TS:        time.Now().Add(16 * time.Second),
			Stage:     progress.StageSessionDone,
			Found:     3,
			Dur:       16 * time.Second,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.sessionsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.sessionsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.sessionsCompleted.WithLabelValues("canceled")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.sessionsRunning))

	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.pagesTotal.WithLabelValues(string(progress.OutcomeSuccess))),
		1e-9,
	)
	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.pagesTotal.WithLabelValues(string(progress.OutcomeTimeout))),
		1e-9,
	)
	require.InDelta(t, 3.0, testutil.ToFloat64(sink.fontsFound), 1e-9)
	require.Equal(t, 2, testutil.CollectAndCount(sink.pageDuration, "fontsniffer_page_duration_seconds"))
}

// TestPrometheusSinkDuplicateRegistration verifies a shared registry rejects a second sink.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
