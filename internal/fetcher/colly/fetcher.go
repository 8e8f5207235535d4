// Package collyfetcher implements sniffer.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond throttles outbound fetches across all workers.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// Fetcher implements sniffer.Fetcher using the Colly collector. It is safe
// for concurrent use; each Fetch clones the base collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *rate.Limiter
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = true

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       limiter,
	}
}

// Fetch executes a single HTTP GET. The returned body is normalized to
// UTF-8. Failures come back as *sniffer.FetchError; no retry happens at
// this layer.
func (f *Fetcher) Fetch(ctx context.Context, request sniffer.FetchRequest) (sniffer.FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return sniffer.FetchResponse{}, classify(request.URL, 0, err)
		}
	}

	var (
		result   sniffer.FetchResponse
		status   int
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
		for key, values := range request.Headers {
			for _, value := range values {
				r.Headers.Add(key, value)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		result = sniffer.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       normalizeUTF8(r.Body, r.Headers.Get("Content-Type")),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, request.URL); err != nil {
		return sniffer.FetchResponse{}, classify(request.URL, status, err)
	}
	if fetchErr != nil {
		return sniffer.FetchResponse{}, classify(request.URL, status, fetchErr)
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// classify maps transport failures onto the fetch error taxonomy.
func classify(url string, status int, err error) *sniffer.FetchError {
	if status >= 400 {
		return &sniffer.FetchError{
			Kind:       sniffer.FetchHTTPStatus,
			URL:        url,
			StatusCode: status,
			Err:        err,
		}
	}

	kind := sniffer.FetchConnection
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = sniffer.FetchTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = sniffer.FetchTimeout
	}
	return &sniffer.FetchError{Kind: kind, URL: url, Err: err}
}
