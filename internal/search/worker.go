package search

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ancylx/FontSniffer/internal/progress"
	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// worker executes one fetch+extract cycle per task. All workers of a session
// share one instance; it holds no per-task state.
type worker struct {
	fetcher   sniffer.Fetcher
	extractor sniffer.Extractor
	retry     sniffer.RetryPolicy
	clock     sniffer.Clock
	emitter   progress.Emitter
	logger    *zap.Logger
	keyword   string // lowercased
	timeout   time.Duration
}

// process runs a single page task to completion. Failures after retries are
// recorded in the session stats; they never propagate.
func (w *worker) process(ctx context.Context, session *Session, task sniffer.PageTask) {
	start := time.Now()
	resp, err := w.fetchWithRetry(ctx, session, task)
	if err != nil {
		session.recordFailure()
		w.logger.Debug("page failed",
			zap.String("session_id", session.id),
			zap.Int("page", task.PageIndex),
			zap.Error(err),
		)
		w.emitter.Emit(progress.Event{
			SessionID: session.id,
			TS:        w.clock.Now(),
			Stage:     progress.StagePageDone,
			Page:      task.PageIndex,
			URL:       task.URL,
			Outcome:   progress.ClassifyError(err),
			Dur:       time.Since(start),
			Note:      err.Error(),
		})
		return
	}

	entries := w.extractor.Extract(resp.Body, task.URL)
	added := session.addResults(w.filterKeyword(entries))
	session.recordSuccess()

	w.emitter.Emit(progress.Event{
		SessionID: session.id,
		TS:        w.clock.Now(),
		Stage:     progress.StagePageDone,
		Page:      task.PageIndex,
		URL:       task.URL,
		Found:     added,
		Outcome:   progress.OutcomeSuccess,
		Dur:       time.Since(start),
	})
}

// fetchWithRetry applies the per-fetch timeout and the bounded retry policy.
func (w *worker) fetchWithRetry(ctx context.Context, session *Session, task sniffer.PageTask) (sniffer.FetchResponse, error) {
	request := sniffer.FetchRequest{
		SessionID: session.id,
		URL:       task.URL,
		PageIndex: task.PageIndex,
	}

	retried := false
	for attempt := 0; ; attempt++ {
		resp, err := w.fetchOnce(ctx, request)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !w.retry.ShouldRetry(err, attempt) {
			return sniffer.FetchResponse{}, err
		}
		if !retried {
			retried = true
			session.recordRetry()
		}
		w.logger.Debug("retrying page",
			zap.String("session_id", session.id),
			zap.Int("page", task.PageIndex),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return sniffer.FetchResponse{}, ctx.Err()
		case <-time.After(w.retry.Backoff(attempt)):
		}
	}
}

func (w *worker) fetchOnce(ctx context.Context, request sniffer.FetchRequest) (sniffer.FetchResponse, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.fetcher.Fetch(ctx, request)
}

// filterKeyword keeps entries whose name contains the session keyword,
// case-insensitively. An empty keyword never reaches this point.
func (w *worker) filterKeyword(entries []sniffer.FontResult) []sniffer.FontResult {
	matched := entries[:0:0]
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), w.keyword) {
			matched = append(matched, e)
		}
	}
	return matched
}
