package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Ancylx/FontSniffer/internal/progress"
	"github.com/Ancylx/FontSniffer/internal/queue/memory"
	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// Config controls planning behavior.
type Config struct {
	// ListURLTemplate produces the URL of listing page N (fmt verb %d).
	ListURLTemplate string
	// FallbackPageCount is used when the pager cannot be read.
	FallbackPageCount int
	// MaxPageLimit is a hard upper bound on planned pages.
	MaxPageLimit int
	// QueueDepth bounds the in-memory task queue.
	QueueDepth int
}

const (
	defaultListURLTemplate   = "http://www.downcc.com/font/list_200_%d.html"
	defaultFallbackPageCount = 383
	defaultQueueDepth        = 64
)

// Orchestrator expands a keyword into page tasks, fans them out across a
// bounded worker pool, and aggregates deduplicated results into a Session.
type Orchestrator struct {
	fetcher   sniffer.Fetcher
	extractor sniffer.Extractor
	retry     sniffer.RetryPolicy
	clock     sniffer.Clock
	idGen     sniffer.IDGenerator
	emitter   progress.Emitter
	logger    *zap.Logger
	cfg       Config
}

// New constructs an Orchestrator. emitter and logger may be nil.
func New(
	fetcher sniffer.Fetcher,
	extractor sniffer.Extractor,
	retry sniffer.RetryPolicy,
	clock sniffer.Clock,
	idGen sniffer.IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListURLTemplate == "" {
		cfg.ListURLTemplate = defaultListURLTemplate
	}
	if cfg.FallbackPageCount <= 0 {
		cfg.FallbackPageCount = defaultFallbackPageCount
	}
	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = defaultFallbackPageCount
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		retry:     retry,
		clock:     clock,
		idGen:     idGen,
		emitter:   emitter,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes one search session. Per-task failures are recorded in the
// session stats and never returned as errors; an unusable keyword yields a
// session finalized with StatusInvalidKeyword. Cancelling ctx stops dispatch,
// aborts in-flight fetches, and still returns the partial session.
func (o *Orchestrator) Run(ctx context.Context, request sniffer.SearchRequest) (*Session, error) {
	id, err := o.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("new session id: %w", err)
	}
	session := newSession(id, request, o.clock.Now())

	keyword := strings.TrimSpace(request.Keyword)
	if keyword == "" {
		session.finalize(sniffer.StatusInvalidKeyword, o.clock.Now())
		o.emitTerminal(session, progress.StageSessionError, sniffer.ErrInvalidKeyword.Error())
		return session, nil
	}

	o.emitter.Emit(progress.Event{
		SessionID: session.id,
		TS:        session.started,
		Stage:     progress.StageSessionStart,
		Note:      keyword,
	})

	totalPages := o.planPageCount(ctx, session, request)
	session.setTotalTasks(totalPages)
	o.logger.Info("search planned",
		zap.String("session_id", session.id),
		zap.String("keyword", keyword),
		zap.Int("pages", totalPages),
		zap.Int("workers", request.ClampedThreads()),
	)

	o.runPool(ctx, session, request, keyword, totalPages)

	status := sniffer.StatusCompleted
	stage := progress.StageSessionDone
	if ctx.Err() != nil {
		status = sniffer.StatusCanceled
		stage = progress.StageSessionCanceled
	}
	session.finalize(status, o.clock.Now())
	o.emitTerminal(session, stage, "")

	snap := session.Snapshot()
	o.logger.Info("search finished",
		zap.String("session_id", session.id),
		zap.String("status", string(snap.Status)),
		zap.Int("found", len(snap.Results)),
		zap.Int("attempted", snap.Stats.Attempted),
		zap.Int("succeeded", snap.Stats.Succeeded),
		zap.Int("failed", snap.Stats.Failed),
		zap.Duration("elapsed", snap.Stats.Elapsed),
	)
	return session, nil
}

// planPageCount determines how many listing pages to visit. An explicit
// request cap wins; otherwise the first listing page's pager is consulted,
// falling back to a fixed count when unreadable.
func (o *Orchestrator) planPageCount(ctx context.Context, session *Session, request sniffer.SearchRequest) int {
	if request.MaxPages > 0 {
		return min(request.MaxPages, o.cfg.MaxPageLimit)
	}

	fetchCtx := ctx
	if request.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, request.Timeout)
		defer cancel()
	}
	resp, err := o.fetcher.Fetch(fetchCtx, sniffer.FetchRequest{
		SessionID: session.id,
		URL:       o.pageURL(1),
		PageIndex: 1,
	})
	if err != nil {
		o.logger.Warn("page count detection failed, using fallback",
			zap.String("session_id", session.id),
			zap.Int("fallback", o.cfg.FallbackPageCount),
			zap.Error(err),
		)
		return min(o.cfg.FallbackPageCount, o.cfg.MaxPageLimit)
	}
	if n := o.extractor.PageCount(resp.Body); n > 0 {
		return min(n, o.cfg.MaxPageLimit)
	}
	return min(o.cfg.FallbackPageCount, o.cfg.MaxPageLimit)
}

// runPool feeds page tasks to a bounded worker pool and blocks until every
// dispatched task completes or the context is canceled.
func (o *Orchestrator) runPool(
	ctx context.Context,
	session *Session,
	request sniffer.SearchRequest,
	keyword string,
	totalPages int,
) {
	tasks := memory.New(min(totalPages, o.cfg.QueueDepth))

	go func() {
		defer tasks.Close()
		for page := 1; page <= totalPages; page++ {
			task := sniffer.PageTask{URL: o.pageURL(page), PageIndex: page}
			if err := tasks.Enqueue(ctx, task); err != nil {
				return
			}
		}
	}()

	w := &worker{
		fetcher:   o.fetcher,
		extractor: o.extractor,
		retry:     o.retry,
		clock:     o.clock,
		emitter:   o.emitter,
		logger:    o.logger,
		keyword:   strings.ToLower(keyword),
		timeout:   request.Timeout,
	}

	var wg sync.WaitGroup
	for i := 0; i < request.ClampedThreads(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				task, err := tasks.Dequeue(ctx)
				if err != nil {
					return
				}
				w.process(ctx, session, task)
			}
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) pageURL(page int) string {
	return fmt.Sprintf(o.cfg.ListURLTemplate, page)
}

func (o *Orchestrator) emitTerminal(session *Session, stage progress.Stage, note string) {
	snap := session.Snapshot()
	o.emitter.Emit(progress.Event{
		SessionID: session.id,
		TS:        snap.FinishedAt,
		Stage:     stage,
		Found:     len(snap.Results),
		Dur:       snap.Stats.Elapsed,
		Note:      note,
	})
}
