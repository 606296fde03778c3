package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/equesjoao/rspy/internal/cache"
	"github.com/equesjoao/rspy/internal/config"
)

func itemAt(t time.Time, title, link string) *gofeed.Item {
	return &gofeed.Item{Title: title, Link: link, PublishedParsed: &t}
}

func TestNormalizeWindow(t *testing.T) {
	now := time.Now()
	window := 24 * time.Hour
	items := []*gofeed.Item{
		itemAt(now.Add(-1*time.Hour), "fresh", "https://a.com/1"),
		itemAt(now.Add(-25*time.Hour), "stale", "https://a.com/2"),
		itemAt(now.Add(2*time.Hour), "future", "https://a.com/3"),
		{Title: "no time", Link: "https://a.com/4"},
		nil,
	}

	got := Normalize(items, "A", window, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 article, got %d", len(got))
	}
	if got[0].Title != "fresh" || got[0].Feed != "A" {
		t.Errorf("kept wrong article: %+v", got[0])
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	now := time.Now()
	items := []*gofeed.Item{itemAt(now.Add(-time.Minute), "", "")}

	got := Normalize(items, "A", time.Hour, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 article, got %d", len(got))
	}
	if got[0].Title != cache.NoTitle {
		t.Errorf("title = %q, want placeholder %q", got[0].Title, cache.NoTitle)
	}
	if got[0].Link != cache.NoLink {
		t.Errorf("link = %q, want placeholder %q", got[0].Link, cache.NoLink)
	}
}

func rssDoc(pubDate time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>Hello</title><link>https://a.com/hello</link><pubDate>%s</pubDate></item>
</channel></rss>`, pubDate.Format(time.RFC1123Z))
}

func testOpts() Options {
	return Options{
		Window:     24 * time.Hour,
		Timeout:    2 * time.Second,
		Retries:    0,
		MaxWorkers: 4,
		UserAgent:  "rspy-test/1.0",
	}
}

func TestRSSFetcherSuccess(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		fmt.Fprint(w, rssDoc(time.Now().Add(-time.Hour)))
	}))
	defer srv.Close()

	f := NewRSSFetcher(testOpts(), zap.NewNop())
	got := f.Fetch(context.Background(), config.Feed{Name: "A", URL: srv.URL})
	if len(got) != 1 {
		t.Fatalf("expected 1 article, got %d", len(got))
	}
	if got[0].Feed != "A" || got[0].Link != "https://a.com/hello" {
		t.Errorf("unexpected article: %+v", got[0])
	}
	if ua, _ := gotUA.Load().(string); ua != "rspy-test/1.0" {
		t.Errorf("User-Agent = %q, want rspy-test/1.0", ua)
	}
}

func TestRSSFetcherNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewRSSFetcher(testOpts(), zap.NewNop())
	if got := f.Fetch(context.Background(), config.Feed{Name: "A", URL: srv.URL}); len(got) != 0 {
		t.Errorf("expected empty result for 404, got %d articles", len(got))
	}
}

func TestRSSFetcherMalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer srv.Close()

	f := NewRSSFetcher(testOpts(), zap.NewNop())
	if got := f.Fetch(context.Background(), config.Feed{Name: "A", URL: srv.URL}); len(got) != 0 {
		t.Errorf("expected empty result for malformed feed, got %d articles", len(got))
	}
}

func TestRSSFetcherSkipsIncompleteFeed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f := NewRSSFetcher(testOpts(), zap.NewNop())
	if got := f.Fetch(context.Background(), config.Feed{Name: "", URL: srv.URL}); len(got) != 0 {
		t.Errorf("expected empty result for nameless feed, got %d", len(got))
	}
	if got := f.Fetch(context.Background(), config.Feed{Name: "A", URL: ""}); len(got) != 0 {
		t.Errorf("expected empty result for url-less feed, got %d", len(got))
	}
	if hits.Load() != 0 {
		t.Errorf("expected no network calls for incomplete feeds, got %d", hits.Load())
	}
}

// stubFetcher returns canned results per feed name; "panic" panics inside the
// worker.
type stubFetcher struct {
	mu      sync.Mutex
	active  int
	peak    int
	results map[string][]cache.Article
}

func (s *stubFetcher) Fetch(ctx context.Context, src config.Feed) []cache.Article {
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if src.Name == "panic" {
		panic("boom")
	}
	return s.results[src.Name]
}

func TestFetchAllCollectsPartialResults(t *testing.T) {
	now := time.Now()
	stub := &stubFetcher{results: map[string][]cache.Article{
		"A": {{Feed: "A", Title: "a1", Link: "https://a.com/1", Published: now}},
		"B": {{Feed: "B", Title: "b1", Link: "https://b.com/1", Published: now}},
	}}
	feeds := []config.Feed{
		{Name: "A", URL: "https://a.com/rss"},
		{Name: "panic", URL: "https://p.com/rss"},
		{Name: "B", URL: "https://b.com/rss"},
	}

	got := FetchAll(context.Background(), feeds, stub, testOpts(), zap.NewNop())
	if len(got) != 2 {
		t.Fatalf("expected 2 articles despite one failing feed, got %d", len(got))
	}
	// Slot order: feed-list order.
	if got[0].Feed != "A" || got[1].Feed != "B" {
		t.Errorf("unexpected order: %q, %q", got[0].Feed, got[1].Feed)
	}
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	stub := &stubFetcher{results: map[string][]cache.Article{}}
	var feeds []config.Feed
	for i := 0; i < 12; i++ {
		feeds = append(feeds, config.Feed{Name: fmt.Sprintf("f%d", i), URL: "https://x.com/rss"})
	}

	opts := testOpts()
	opts.MaxWorkers = 3
	FetchAll(context.Background(), feeds, stub, opts, zap.NewNop())

	if stub.peak > 3 {
		t.Errorf("peak concurrency %d exceeds cap 3", stub.peak)
	}
}

func TestFetchAllEmptyFeedList(t *testing.T) {
	got := FetchAll(context.Background(), nil, &stubFetcher{}, testOpts(), zap.NewNop())
	if len(got) != 0 {
		t.Errorf("expected no articles for empty feed list, got %d", len(got))
	}
}
