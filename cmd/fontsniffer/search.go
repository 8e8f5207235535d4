package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ancylx/FontSniffer/internal/clock/system"
	"github.com/Ancylx/FontSniffer/internal/extractor"
	collyfetcher "github.com/Ancylx/FontSniffer/internal/fetcher/colly"
	"github.com/Ancylx/FontSniffer/internal/id/uuid"
	"github.com/Ancylx/FontSniffer/internal/progress"
	"github.com/Ancylx/FontSniffer/internal/progress/sinks"
	"github.com/Ancylx/FontSniffer/internal/search"
	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// searchOptions holds the per-invocation flag overrides. Zero values fall
// back to the loaded configuration.
type searchOptions struct {
	threads     int
	timeoutSec  int
	maxPages    int
	format      string
	metricsAddr string
}

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search the font catalog for fonts matching a keyword",
		Long: `Fetches catalog listing pages concurrently and collects every font whose
name contains the keyword (case-insensitive). Per-page failures are retried
with backoff and counted in the final statistics; they never abort the
search. Ctrl-C stops dispatch and prints whatever was found so far.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runSearch(cmd, a, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.threads, "threads", 0, "worker pool size (default from config)")
	cmd.Flags().IntVar(&opts.timeoutSec, "timeout", 0, "per-page fetch timeout in seconds (default from config)")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "cap on listing pages to visit (0 = detect from the site's pager)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text, json, or csv")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the search runs (debug only)")

	return cmd
}

func runSearch(cmd *cobra.Command, a *app, keyword string, opts searchOptions) error {
	if _, err := newRenderer(opts.format); err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg := a.cfg
	logger := a.logger

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init metrics sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("Progress hub close failed", zap.Error(cerr))
		}
	}()

	metricsAddr := opts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		shutdown := serveMetrics(metricsAddr, registry, logger)
		defer shutdown()
	}

	timeout := cfg.HTTP.Timeout()
	if opts.timeoutSec > 0 {
		timeout = time.Duration(opts.timeoutSec) * time.Second
	}
	threads := cfg.Search.Threads
	if opts.threads > 0 {
		threads = opts.threads
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:         cfg.HTTP.UserAgent,
		Timeout:           timeout,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	})
	ext, err := extractor.New(cfg.Site.BaseURL)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}
	retry := search.NewExponentialRetryPolicy(
		cfg.Retry.MaxAttempts,
		cfg.Retry.BackoffInitial(),
		cfg.Retry.BackoffMax(),
	)

	orchestrator := search.New(
		fetcher,
		ext,
		retry,
		system.New(),
		uuid.New(),
		hub,
		logger,
		search.Config{
			ListURLTemplate:   cfg.Site.ListURLTemplate,
			FallbackPageCount: cfg.Site.FallbackPages,
			MaxPageLimit:      cfg.Site.MaxPages,
			QueueDepth:        cfg.Search.QueueDepth,
		},
	)

	session, err := orchestrator.Run(ctx, sniffer.SearchRequest{
		Keyword:     keyword,
		ThreadCount: threads,
		Timeout:     timeout,
		MaxPages:    opts.maxPages,
	})
	if err != nil {
		return fmt.Errorf("run search: %w", err)
	}

	snapshot := session.Snapshot()
	if snapshot.Status == sniffer.StatusInvalidKeyword {
		return errors.New("keyword must not be empty")
	}

	render, _ := newRenderer(opts.format)
	return render(cmd.OutOrStdout(), snapshot)
}

// serveMetrics starts the opt-in Prometheus debug listener. The returned
// function shuts it down.
func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics listener stopped", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics listener shutdown failed", zap.Error(err))
		}
	}
}
