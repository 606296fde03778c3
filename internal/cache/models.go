package cache

import "time"

// Placeholder values for entries that lack a usable title or link. An
// article carrying NoLink is still shown but can never be opened, and it is
// exempt from link-based deduplication.
const (
	NoTitle = "No title"
	NoLink  = "No link"
)

// Article is the canonical shape every feed entry is normalized into before
// merging, caching, or display.
type Article struct {
	Feed      string    `json:"feed"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"timestamp"`
}

// Snapshot is the entire persisted cache state at one write point.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Articles  []Article `json:"articles"`
}
