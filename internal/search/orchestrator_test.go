package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ancylx/FontSniffer/internal/extractor"
	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

const testListTemplate = "http://fonts.test/font/list_200_%d.html"

// listingPage builds a downcc-shaped listing body. Each entry is a
// (name, href) pair; empty href produces a malformed entry that the
// extractor must skip.
func listingPage(entries [][2]string) []byte {
	var b []byte
	b = append(b, `<html><body><section class="soft-list"><ul id="li-change-color">`...)
	for _, e := range entries {
		if e[1] == "" {
			b = append(b, fmt.Sprintf(`<li><span>%s</span></li>`, e[0])...)
			continue
		}
		b = append(b, fmt.Sprintf(`<li><a class="mg-r10" href="%s">%s</a></li>`, e[1], e[0])...)
	}
	b = append(b, `</ul></section></body></html>`...)
	return b
}

type pageResponse struct {
	body  []byte
	err   error
	delay time.Duration
}

// fakeFetcher serves canned responses keyed by page index and records how
// many times each page was requested.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[int]pageResponse
	calls map[int]int
}

func newFakeFetcher(pages map[int]pageResponse) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[int]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req sniffer.FetchRequest) (sniffer.FetchResponse, error) {
	f.mu.Lock()
	f.calls[req.PageIndex]++
	resp, ok := f.pages[req.PageIndex]
	f.mu.Unlock()

	if resp.delay > 0 {
		select {
		case <-ctx.Done():
			return sniffer.FetchResponse{}, &sniffer.FetchError{
				Kind: sniffer.FetchConnection, URL: req.URL, Err: ctx.Err(),
			}
		case <-time.After(resp.delay):
		}
	}
	if !ok {
		return sniffer.FetchResponse{}, &sniffer.FetchError{Kind: sniffer.FetchConnection, URL: req.URL}
	}
	if resp.err != nil {
		return sniffer.FetchResponse{}, resp.err
	}
	return sniffer.FetchResponse{URL: req.URL, StatusCode: 200, Body: resp.body}, nil
}

func (f *fakeFetcher) callCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[page]
}

type fakeClock struct{}

func (fakeClock) Now() time.Time { return time.Now().UTC() }

type fakeIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *fakeIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("session-%03d", g.n), nil
}

func newTestOrchestrator(t *testing.T, fetcher sniffer.Fetcher) *Orchestrator {
	t.Helper()
	ex, err := extractor.New("http://fonts.test")
	require.NoError(t, err)
	return New(
		fetcher,
		ex,
		NewExponentialRetryPolicy(0, time.Millisecond, 10*time.Millisecond),
		fakeClock{},
		&fakeIDGen{},
		nil,
		nil,
		Config{ListURLTemplate: testListTemplate},
	)
}

// kaitiPages is the three-page fixture from the end-to-end scenario: each
// page carries two matching entries and one malformed entry.
func kaitiPages() map[int]pageResponse {
	return map[int]pageResponse{
		1: {body: listingPage([][2]string{
			{"方正楷体一", "/font/101.html"},
			{"方正楷体二", "/font/102.html"},
			{"坏条目甲", ""},
		})},
		2: {body: listingPage([][2]string{
			{"华文楷体一", "/font/201.html"},
			{"华文楷体二", "/font/202.html"},
			{"坏条目乙", ""},
		})},
		3: {body: listingPage([][2]string{
			{"楷体拓展一", "/font/301.html"},
			{"楷体拓展二", "/font/302.html"},
			{"坏条目丙", ""},
		})},
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, newFakeFetcher(kaitiPages()))
	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 4,
		Timeout:     time.Second,
		MaxPages:    3,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Equal(t, sniffer.StatusCompleted, snap.Status)
	require.Len(t, snap.Results, 6)
	require.Equal(t, 3, snap.Stats.Attempted)
	require.Equal(t, 3, snap.Stats.Succeeded)
	require.Zero(t, snap.Stats.Failed)
	require.Equal(t, 3, snap.TotalTasks)

	urls := make(map[string]struct{}, len(snap.Results))
	for _, r := range snap.Results {
		urls[r.DownloadURL] = struct{}{}
	}
	require.Len(t, urls, 6, "download URLs must be unique")
}

func TestRunOnePageTimesOut(t *testing.T) {
	t.Parallel()

	pages := kaitiPages()
	pages[2] = pageResponse{err: &sniffer.FetchError{
		Kind: sniffer.FetchTimeout,
		URL:  fmt.Sprintf(testListTemplate, 2),
	}}

	o := newTestOrchestrator(t, newFakeFetcher(pages))
	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 3,
		MaxPages:    3,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Equal(t, 3, snap.Stats.Attempted)
	require.Equal(t, 2, snap.Stats.Succeeded)
	require.Equal(t, 1, snap.Stats.Failed)
	require.Len(t, snap.Results, 4)
	for _, r := range snap.Results {
		require.NotContains(t, r.SourcePage, "list_200_2")
	}
}

func TestRunStatsInvariant(t *testing.T) {
	t.Parallel()

	pages := kaitiPages()
	pages[4] = pageResponse{err: &sniffer.FetchError{Kind: sniffer.FetchConnection, URL: "x"}}
	pages[5] = pageResponse{err: &sniffer.FetchError{Kind: sniffer.FetchHTTPStatus, StatusCode: 404, URL: "x"}}

	o := newTestOrchestrator(t, newFakeFetcher(pages))
	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 2,
		MaxPages:    5,
	})
	require.NoError(t, err)

	stats := session.Snapshot().Stats
	require.Equal(t, stats.Attempted, stats.Succeeded+stats.Failed)
	require.Equal(t, 5, stats.Attempted)
}

func TestRunResultsIndependentOfThreadCount(t *testing.T) {
	t.Parallel()

	collect := func(threads int) map[string]sniffer.FontResult {
		o := newTestOrchestrator(t, newFakeFetcher(kaitiPages()))
		session, err := o.Run(context.Background(), sniffer.SearchRequest{
			Keyword:     "楷体",
			ThreadCount: threads,
			MaxPages:    3,
		})
		require.NoError(t, err)
		set := make(map[string]sniffer.FontResult)
		for _, r := range session.Snapshot().Results {
			set[r.DownloadURL] = r
		}
		return set
	}

	require.Equal(t, collect(1), collect(10))
}

func TestRunDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	shared := [][2]string{{"重复楷体", "/font/777.html"}}
	pages := map[int]pageResponse{
		1: {body: listingPage(shared)},
		2: {body: listingPage(shared)},
	}

	o := newTestOrchestrator(t, newFakeFetcher(pages))
	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 2,
		MaxPages:    2,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Len(t, snap.Results, 1)
	require.Equal(t, 2, snap.Stats.Succeeded)
}

func TestRunKeywordFilter(t *testing.T) {
	t.Parallel()

	pages := map[int]pageResponse{
		1: {body: listingPage([][2]string{
			{"方正宋体", "/font/1.html"},
			{"方正楷体", "/font/2.html"},
		})},
	}
	o := newTestOrchestrator(t, newFakeFetcher(pages))
	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 1,
		MaxPages:    1,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Len(t, snap.Results, 1)
	require.Equal(t, "方正楷体", snap.Results[0].Name)
}

func TestRunInvalidKeyword(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(nil)
	o := newTestOrchestrator(t, fetcher)
	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "   ",
		ThreadCount: 4,
	})
	require.NoError(t, err, "an unusable keyword is a session status, not an error")

	snap := session.Snapshot()
	require.Equal(t, sniffer.StatusInvalidKeyword, snap.Status)
	require.Empty(t, snap.Results)
	require.Zero(t, snap.Stats.Attempted)
	require.Zero(t, fetcher.callCount(1), "no task may be dispatched")
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()

	const totalPages = 40
	pages := make(map[int]pageResponse, totalPages)
	body := listingPage([][2]string{{"楷体条目", "/font/1.html"}})
	for i := 1; i <= totalPages; i++ {
		pages[i] = pageResponse{body: body, delay: 20 * time.Millisecond}
	}

	fetcher := newFakeFetcher(pages)
	o := newTestOrchestrator(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	session, err := o.Run(ctx, sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 2,
		MaxPages:    totalPages,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Equal(t, sniffer.StatusCanceled, snap.Status)
	require.LessOrEqual(t, snap.Stats.Attempted, totalPages)
	require.Less(t, snap.Stats.Attempted, totalPages, "cancellation must stop dispatch early")
	require.Equal(t, snap.Stats.Attempted, snap.Stats.Succeeded+snap.Stats.Failed)

	// No further dispatch after Run returns.
	dispatched := 0
	for i := 1; i <= totalPages; i++ {
		dispatched += fetcher.callCount(i)
	}
	time.Sleep(50 * time.Millisecond)
	after := 0
	for i := 1; i <= totalPages; i++ {
		after += fetcher.callCount(i)
	}
	require.Equal(t, dispatched, after)
}

func TestRunRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	body := listingPage([][2]string{{"楷体重试", "/font/900.html"}})
	fetcher := &flakyFetcher{failures: 2, body: body}

	ex, err := extractor.New("http://fonts.test")
	require.NoError(t, err)
	o := New(
		fetcher,
		ex,
		NewExponentialRetryPolicy(3, time.Millisecond, 5*time.Millisecond),
		fakeClock{},
		&fakeIDGen{},
		nil,
		nil,
		Config{ListURLTemplate: testListTemplate},
	)

	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 1,
		MaxPages:    1,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Equal(t, 1, snap.Stats.Succeeded)
	require.Equal(t, 1, snap.Stats.Retried)
	require.Len(t, snap.Results, 1)
	require.Equal(t, 3, fetcher.attempts)
}

func TestRunPlanUsesDetectedPageCount(t *testing.T) {
	t.Parallel()

	pagerBody := []byte(`<html><body>
<section class="soft-list"><ul id="li-change-color">
<li><a class="mg-r10" href="/font/1.html">楷体首页</a></li>
</ul></section>
<div class="pages"><a href="list_200_2.html">2</a></div>
</body></html>`)
	pages := map[int]pageResponse{
		1: {body: pagerBody},
		2: {body: listingPage([][2]string{{"楷体次页", "/font/2.html"}})},
	}

	fetcher := newFakeFetcher(pages)
	o := newTestOrchestrator(t, fetcher)
	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 2,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Equal(t, 2, snap.TotalTasks)
	require.Equal(t, 2, snap.Stats.Succeeded)
	require.Len(t, snap.Results, 2)
}

func TestRunPlanFallsBackWhenDetectionFails(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(nil) // every fetch fails
	ex, err := extractor.New("http://fonts.test")
	require.NoError(t, err)
	o := New(
		fetcher,
		ex,
		NewExponentialRetryPolicy(0, time.Millisecond, time.Millisecond),
		fakeClock{},
		&fakeIDGen{},
		nil,
		nil,
		Config{ListURLTemplate: testListTemplate, FallbackPageCount: 4, MaxPageLimit: 4},
	)

	session, err := o.Run(context.Background(), sniffer.SearchRequest{
		Keyword:     "楷体",
		ThreadCount: 2,
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Equal(t, 4, snap.TotalTasks)
	require.Equal(t, 4, snap.Stats.Failed)
	require.Equal(t, snap.Stats.Attempted, snap.Stats.Succeeded+snap.Stats.Failed)
}

// flakyFetcher fails its first N fetches, then succeeds.
type flakyFetcher struct {
	mu       sync.Mutex
	failures int
	attempts int
	body     []byte
}

func (f *flakyFetcher) Fetch(_ context.Context, req sniffer.FetchRequest) (sniffer.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return sniffer.FetchResponse{}, &sniffer.FetchError{Kind: sniffer.FetchConnection, URL: req.URL}
	}
	return sniffer.FetchResponse{URL: req.URL, StatusCode: 200, Body: f.body}, nil
}
