package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Store owns the on-disk snapshot file. The merge engine is the only writer;
// fetch code never touches persisted state.
type Store struct {
	path string
	log  *zap.Logger
}

func NewStore(path string, log *zap.Logger) *Store {
	return &Store{path: path, log: log}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Read loads the persisted snapshot and filters it down to articles that are
// still inside the freshness window and belong to a currently configured
// feed. A missing, unreadable, or malformed snapshot is a cold start, never
// an error: the caller just proceeds with no cached articles.
func (s *Store) Read(now time.Time, window time.Duration, currentFeeds map[string]bool) []Article {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("unreadable cache, starting cold", zap.String("path", s.path), zap.Error(err))
		}
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("malformed cache, starting cold", zap.String("path", s.path), zap.Error(err))
		return nil
	}

	cutoff := now.Add(-window)
	valid := make([]Article, 0, len(snap.Articles))
	for _, a := range snap.Articles {
		if a.Published.Before(cutoff) {
			continue
		}
		if !currentFeeds[a.Feed] {
			continue
		}
		valid = append(valid, a)
	}
	s.log.Info("loaded cached articles", zap.Int("count", len(valid)))
	return valid
}

// Write persists a new snapshot, replacing any previous one atomically: the
// JSON is staged in a temp file in the same directory and renamed into
// place, so a later Read never sees a half-written file.
func (s *Store) Write(now time.Time, articles []Article) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(Snapshot{Timestamp: now, Articles: articles}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rss_cache-*.json")
	if err != nil {
		return fmt.Errorf("staging cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache: %w", err)
	}
	return nil
}

// Clear removes the snapshot file entirely, so a later Read sees "no cache"
// rather than an empty one. Clearing an absent snapshot is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache: %w", err)
	}
	return nil
}

// Stats reports the snapshot's article count, file size, and write time.
func (s *Store) Stats() (count int, size int64, writtenAt time.Time, err error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("malformed cache %s: %w", s.path, err)
	}
	return len(snap.Articles), fi.Size(), snap.Timestamp, nil
}
