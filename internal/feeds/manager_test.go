package feeds_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"gleaner/internal/feeds"
	"gleaner/internal/store"
	"gleaner/internal/testsupport"
)

type fakeFetcher struct {
	feeds map[string]*gofeed.Feed
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, feedURL string) (*gofeed.Feed, error) {
	if err, ok := f.errs[feedURL]; ok {
		return nil, err
	}
	if feed, ok := f.feeds[feedURL]; ok {
		return feed, nil
	}
	return nil, errors.New("unknown feed")
}

func item(guid, link, title string, published time.Time) *gofeed.Item {
	it := &gofeed.Item{GUID: guid, Link: link, Title: title}
	if !published.IsZero() {
		it.PublishedParsed = &published
	}
	return it
}

func TestFetchNewEntriesSkipsProcessed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	feed := testsupport.NewFeed(t, st, "https://example.com/feed.xml", store.CategoryArticle)
	fetcher := &fakeFetcher{feeds: map[string]*gofeed.Feed{
		"https://example.com/feed.xml": {Items: []*gofeed.Item{
			item("guid-1", "https://example.com/1", "One", time.Now()),
			item("guid-2", "https://example.com/2", "Two", time.Now()),
		}},
	}}

	seen := testsupport.NewEntry(feed, "guid-1", "One")
	if err := st.MarkProcessed(ctx, seen, "/vault/One.md"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	manager := feeds.NewManager(st, nil, feeds.WithFetcher(fetcher))
	entries, err := manager.FetchNewEntries(ctx, 0)
	if err != nil {
		t.Fatalf("FetchNewEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].GUID != "guid-2" {
		t.Fatalf("GUID = %q, want guid-2", entries[0].GUID)
	}
	if entries[0].FeedID != feed.ID || entries[0].Category != store.CategoryArticle {
		t.Fatalf("entry not attributed to feed: %+v", entries[0])
	}
}

func TestFetchNewEntriesNewestFirstWithLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewFeed(t, st, "https://example.com/feed.xml", store.CategoryArticle)
	now := time.Now()
	fetcher := &fakeFetcher{feeds: map[string]*gofeed.Feed{
		"https://example.com/feed.xml": {Items: []*gofeed.Item{
			item("old", "https://example.com/old", "Old", now.Add(-48*time.Hour)),
			item("new", "https://example.com/new", "New", now),
			item("mid", "https://example.com/mid", "Mid", now.Add(-24*time.Hour)),
		}},
	}}

	manager := feeds.NewManager(st, nil, feeds.WithFetcher(fetcher))
	entries, err := manager.FetchNewEntries(ctx, 2)
	if err != nil {
		t.Fatalf("FetchNewEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].GUID != "new" || entries[1].GUID != "mid" {
		t.Fatalf("ordering = %q, %q", entries[0].GUID, entries[1].GUID)
	}
}

func TestFetchNewEntriesToleratesBrokenFeed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewFeed(t, st, "https://broken.example.com/feed.xml", store.CategoryArticle)
	testsupport.NewFeed(t, st, "https://ok.example.com/feed.xml", store.CategoryArticle)
	fetcher := &fakeFetcher{
		errs: map[string]error{"https://broken.example.com/feed.xml": errors.New("timeout")},
		feeds: map[string]*gofeed.Feed{
			"https://ok.example.com/feed.xml": {Items: []*gofeed.Item{
				item("ok-1", "https://ok.example.com/1", "OK", time.Now()),
			}},
		},
	}

	manager := feeds.NewManager(st, nil, feeds.WithFetcher(fetcher))
	entries, err := manager.FetchNewEntries(ctx, 0)
	if err != nil {
		t.Fatalf("FetchNewEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].GUID != "ok-1" {
		t.Fatalf("entries = %+v, want only ok-1", entries)
	}
}

func TestFetchNewEntriesGUIDFallsBackToLink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewFeed(t, st, "https://example.com/feed.xml", store.CategoryArticle)
	fetcher := &fakeFetcher{feeds: map[string]*gofeed.Feed{
		"https://example.com/feed.xml": {Items: []*gofeed.Item{
			item("", "https://example.com/no-guid", "No GUID", time.Now()),
			item("no-link", "", "No link", time.Now()),
		}},
	}}

	manager := feeds.NewManager(st, nil, feeds.WithFetcher(fetcher))
	entries, err := manager.FetchNewEntries(ctx, 0)
	if err != nil {
		t.Fatalf("FetchNewEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (link-less item dropped)", len(entries))
	}
	if entries[0].GUID != "https://example.com/no-guid" {
		t.Fatalf("GUID = %q, want the link", entries[0].GUID)
	}
}

func TestPreviewEntriesDoesNotTouchFeeds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	feed := testsupport.NewFeed(t, st, "https://example.com/feed.xml", store.CategoryArticle)
	fetcher := &fakeFetcher{feeds: map[string]*gofeed.Feed{
		"https://example.com/feed.xml": {Items: []*gofeed.Item{
			item("guid-1", "https://example.com/1", "One", time.Now()),
		}},
	}}
	manager := feeds.NewManager(st, nil, feeds.WithFetcher(fetcher))

	entries, err := manager.PreviewEntries(ctx, 0)
	if err != nil {
		t.Fatalf("PreviewEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	stored, err := st.FeedByURL(ctx, feed.URL)
	if err != nil || stored == nil {
		t.Fatalf("FeedByURL = %v, %v", stored, err)
	}
	if stored.LastFetchedAt != nil {
		t.Fatalf("preview recorded a fetch time: %v", stored.LastFetchedAt)
	}

	if _, err := manager.FetchNewEntries(ctx, 0); err != nil {
		t.Fatalf("FetchNewEntries: %v", err)
	}
	stored, err = st.FeedByURL(ctx, feed.URL)
	if err != nil || stored == nil || stored.LastFetchedAt == nil {
		t.Fatalf("fetch did not record a fetch time: %+v, %v", stored, err)
	}
}

func TestAddFeedDetectsCategoryAndTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	feedURL := "https://www.youtube.com/feeds/videos.xml?channel_id=abc"
	fetcher := &fakeFetcher{feeds: map[string]*gofeed.Feed{
		feedURL: {Title: "Some Channel"},
	}}

	manager := feeds.NewManager(st, nil, feeds.WithFetcher(fetcher))
	feed, err := manager.AddFeed(ctx, feedURL, "", "")
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if feed.Category != store.CategoryVideo {
		t.Fatalf("Category = %q, want video", feed.Category)
	}
	if feed.Title != "Some Channel" {
		t.Fatalf("Title = %q, want probed feed title", feed.Title)
	}
}

func TestAddFeedUnreachableFallsBackToURLTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	manager := feeds.NewManager(st, nil, feeds.WithFetcher(&fakeFetcher{}))
	feed, err := manager.AddFeed(context.Background(), "https://example.com/feed.xml", "", "")
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if feed.Title != "https://example.com/feed.xml" {
		t.Fatalf("Title = %q, want URL fallback", feed.Title)
	}
	if feed.Category != store.CategoryArticle {
		t.Fatalf("Category = %q, want article", feed.Category)
	}
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		url  string
		want store.Category
	}{
		{"https://www.youtube.com/feeds/videos.xml?channel_id=abc", store.CategoryVideo},
		{"https://youtu.be/feed", store.CategoryVideo},
		{"https://m.youtube.com/feed", store.CategoryVideo},
		{"https://example.com/rss", store.CategoryArticle},
		{"not a url", store.CategoryArticle},
	}
	for _, tc := range tests {
		if got := feeds.DetectCategory(tc.url); got != tc.want {
			t.Errorf("DetectCategory(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
