package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/equesjoao/rspy/internal/cache"
	"github.com/equesjoao/rspy/internal/config"
)

// Options bound a fetch run. All values come from the loaded configuration;
// nothing here is process-wide state.
type Options struct {
	Window     time.Duration
	Timeout    time.Duration
	Retries    int
	MaxWorkers int
	UserAgent  string
}

// Fetcher produces one feed's articles. Per-feed failures are not errors:
// a failed feed simply yields no articles, and the run continues.
type Fetcher interface {
	Fetch(ctx context.Context, src config.Feed) []cache.Article
}

// RSSFetcher retrieves a feed over HTTP with a timeout and retry budget and
// hands the body to gofeed.
type RSSFetcher struct {
	client *http.Client
	parser *gofeed.Parser
	opts   Options
	log    *zap.Logger
}

func NewRSSFetcher(opts Options, log *zap.Logger) *RSSFetcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.Retries
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = nil
	return &RSSFetcher{
		client: rc.StandardClient(),
		parser: gofeed.NewParser(),
		opts:   opts,
		log:    log,
	}
}

func (f *RSSFetcher) Fetch(ctx context.Context, src config.Feed) []cache.Article {
	if src.Name == "" || src.URL == "" {
		f.log.Warn("skipping feed with missing name or url", zap.String("name", src.Name), zap.String("url", src.URL))
		return nil
	}
	f.log.Info("fetching feed", zap.String("feed", src.Name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		f.log.Warn("fetch failed", zap.String("feed", src.Name), zap.Error(err))
		return nil
	}
	ua := f.opts.UserAgent
	if ua == "" {
		ua = "rspy/1.0"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("fetch failed", zap.String("feed", src.Name), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.log.Warn("fetch failed", zap.String("feed", src.Name), zap.Int("status", resp.StatusCode))
		return nil
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		f.log.Warn("malformed feed", zap.String("feed", src.Name), zap.Error(err))
		return nil
	}

	return Normalize(parsed.Items, src.Name, f.opts.Window, time.Now())
}

// Normalize converts one parsed feed's entries into canonical articles,
// keeping only entries whose publish time parsed and falls inside
// [now-window, now]. Entries without a usable publish time are skipped
// silently; feeds routinely contain malformed entries.
func Normalize(items []*gofeed.Item, feedName string, window time.Duration, now time.Time) []cache.Article {
	cutoff := now.Add(-window)
	articles := make([]cache.Article, 0, len(items))
	for _, item := range items {
		if item == nil || item.PublishedParsed == nil {
			continue
		}
		pub := *item.PublishedParsed
		if pub.Before(cutoff) || pub.After(now) {
			continue
		}

		title := item.Title
		if title == "" {
			title = cache.NoTitle
		}
		link := item.Link
		if link == "" {
			link = cache.NoLink
		}

		articles = append(articles, cache.Article{
			Feed:      feedName,
			Title:     title,
			Link:      link,
			Published: pub,
		})
	}
	return articles
}

// FetchAll runs the fetcher over every feed under a bounded worker pool and
// returns the union of the per-feed results, in feed-list order. Each worker
// writes into its own result slot, so no lock guards the collection. A
// panicking worker contributes an empty slot and never takes down the run.
func FetchAll(ctx context.Context, feeds []config.Feed, fetcher Fetcher, opts Options, log *zap.Logger) []cache.Article {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	// The whole fetch for one feed, retries included, is bounded by this
	// budget; a slow feed delays only the barrier, not other feeds.
	budget := opts.Timeout * time.Duration(opts.Retries+1)
	if budget <= 0 {
		budget = 30 * time.Second
	}

	results := make([][]cache.Article, len(feeds))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, f := range feeds {
		wg.Add(1)
		go func(i int, f config.Feed) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error("feed worker panicked", zap.String("feed", f.Name), zap.Any("panic", r))
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			fctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()
			results[i] = fetcher.Fetch(fctx, f)
		}(i, f)
	}
	wg.Wait()

	var all []cache.Article
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}
