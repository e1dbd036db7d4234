package testsupport

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"gleaner/internal/config"
	"gleaner/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewFeed inserts a feed subscription for tests.
func NewFeed(t testing.TB, st *store.Store, url string, category store.Category) *store.Feed {
	t.Helper()

	feed, err := st.AddFeed(context.Background(), url, "Test Feed", category)
	if err != nil {
		t.Fatalf("store.AddFeed: %v", err)
	}
	return feed
}

// ForceRetryDue rewinds a retry entry's next attempt time so it becomes an
// immediate candidate. It opens its own connection; WAL mode permits this
// alongside the store's.
func ForceRetryDue(t testing.TB, cfg *config.Config, guid string) {
	t.Helper()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	due := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano)
	if _, err := db.Exec(`UPDATE retry_queue SET next_retry_at = ? WHERE entry_guid = ?`, due, guid); err != nil {
		t.Fatalf("force retry due: %v", err)
	}
}

// NewEntry builds an entry owned by the given feed.
func NewEntry(feed *store.Feed, guid, title string) store.Entry {
	return store.Entry{
		GUID:     guid,
		Title:    title,
		URL:      "https://example.com/" + guid,
		FeedID:   feed.ID,
		Category: feed.Category,
	}
}
