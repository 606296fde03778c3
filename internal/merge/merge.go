package merge

import (
	"time"

	"go.uber.org/zap"

	"github.com/equesjoao/rspy/internal/cache"
)

// Store is the part of the cache store the engine commits through.
type Store interface {
	Write(now time.Time, articles []cache.Article) error
	Clear() error
}

// Engine combines fresh and cached articles and commits the result as the
// new snapshot. It is the cache's only writer.
type Engine struct {
	store Store
	log   *zap.Logger
}

func NewEngine(store Store, log *zap.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Merge deduplicates by link, walking the fresh articles first so a
// refetched article always supersedes its cached copy. Placeholder links
// cannot collide: articles without a real link are always kept and never
// deduplicated against each other. Cached articles whose feed is no longer
// configured are dropped.
func Merge(fresh, cached []cache.Article, currentFeeds map[string]bool) []cache.Article {
	seen := make(map[string]bool, len(fresh))
	merged := make([]cache.Article, 0, len(fresh)+len(cached))

	for _, a := range fresh {
		if noLink(a) {
			merged = append(merged, a)
			continue
		}
		if seen[a.Link] {
			continue
		}
		seen[a.Link] = true
		merged = append(merged, a)
	}

	for _, a := range cached {
		if !currentFeeds[a.Feed] {
			continue
		}
		if noLink(a) {
			merged = append(merged, a)
			continue
		}
		if seen[a.Link] {
			continue
		}
		seen[a.Link] = true
		merged = append(merged, a)
	}

	return merged
}

func noLink(a cache.Article) bool {
	return a.Link == "" || a.Link == cache.NoLink
}

// Run merges and commits in a single step: the snapshot is written when the
// merge produced anything and removed when it did not, so the next run sees
// "no cache" instead of an empty one. A failed write degrades to an
// unpersisted run; the merged list is still returned for display.
func (e *Engine) Run(now time.Time, fresh, cached []cache.Article, currentFeeds map[string]bool) []cache.Article {
	merged := Merge(fresh, cached, currentFeeds)

	if len(merged) == 0 {
		if err := e.store.Clear(); err != nil {
			e.log.Warn("clearing cache", zap.Error(err))
		}
		return merged
	}

	if err := e.store.Write(now, merged); err != nil {
		e.log.Warn("cache not updated", zap.Error(err))
	}
	return merged
}
