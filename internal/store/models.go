package store

import (
	"fmt"
	"time"
)

// Category classifies a feed and selects the tool profile used for its entries.
type Category string

const (
	CategoryArticle Category = "article"
	CategoryVideo   Category = "video"
	CategoryAudio   Category = "audio"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{CategoryArticle, CategoryVideo, CategoryAudio}
}

// ParseCategory validates a category string. Unknown values are rejected here
// so later dispatch never sees an unmapped category.
func ParseCategory(value string) (Category, error) {
	switch Category(value) {
	case CategoryArticle, CategoryVideo, CategoryAudio:
		return Category(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, value)
}

// Feed is a subscription to an RSS or Atom source.
type Feed struct {
	ID            int64
	URL           string
	Title         string
	Category      Category
	Active        bool
	AddedAt       time.Time
	LastFetchedAt *time.Time
}

// Entry is one feed item considered for processing during a run. Entries are
// built fresh each run and never persisted as such; only their outcome is.
type Entry struct {
	GUID        string
	Title       string
	URL         string
	Content     string
	Author      string
	PublishedAt *time.Time
	FeedID      int64
	FeedTitle   string
	Category    Category
}

// ProcessedEntry is the durable record of a successfully completed entry.
type ProcessedEntry struct {
	ID          int64
	GUID        string
	FeedID      int64
	URL         string
	Title       string
	PublishedAt *time.Time
	ProcessedAt time.Time
	NotePath    string
}

// RetryEntry is one scheduled re-attempt in the retry queue.
type RetryEntry struct {
	ID            int64
	GUID          string
	FeedID        int64
	URL           string
	Title         string
	Category      Category
	FirstFailedAt time.Time
	LastAttemptAt time.Time
	NextRetryAt   time.Time
	RetryCount    int
	LastError     string
}

// Entry converts a retry record back into a processable entry.
func (r *RetryEntry) Entry() Entry {
	return Entry{
		GUID:     r.GUID,
		Title:    r.Title,
		URL:      r.URL,
		FeedID:   r.FeedID,
		Category: r.Category,
	}
}

// RunStatus is the lifecycle state of a pipeline run row.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one orchestrator invocation bounded by start/completion records.
type Run struct {
	ID             int64
	StartedAt      time.Time
	CompletedAt    *time.Time
	ItemsFetched   int
	ItemsProcessed int
	ItemsFailed    int
	Status         RunStatus
}

// RunDetails joins run metadata with the entries and failures attributed to it.
type RunDetails struct {
	Run     Run
	Entries []ProcessedEntry
	Failed  []RetryEntry
}

// Clip is the completion marker for a captured web clip, keyed by file path.
type Clip struct {
	ID          int64
	Path        string
	ProcessedAt time.Time
	NotePath    string
	Promoted    bool
	Category    string
}
