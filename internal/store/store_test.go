package store_test

import (
	"context"
	"errors"
	"testing"

	"gleaner/internal/store"
	"gleaner/internal/testsupport"
)

func TestOpenInitializesSchemaIdempotently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening against the same file must not fail or lose data.
	st2, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	feeds, err := st2.ListFeeds(context.Background(), "")
	if err != nil {
		t.Fatalf("ListFeeds: %v", err)
	}
	if len(feeds) != 0 {
		t.Fatalf("expected empty feed list, got %d", len(feeds))
	}
}

func TestMarkProcessedAndIsProcessed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	feed := testsupport.NewFeed(t, st, "https://example.com/feed", store.CategoryArticle)
	entry := testsupport.NewEntry(feed, "guid-123", "Test Article")

	processed, err := st.IsProcessed(ctx, entry.GUID)
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatal("fresh guid should not be processed")
	}

	if err := st.MarkProcessed(ctx, entry, "/vault/Clippings/test.md"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	processed, err = st.IsProcessed(ctx, entry.GUID)
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Fatal("expected guid marked processed")
	}
}

func TestMarkProcessedRejectsDuplicateGUID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	feed := testsupport.NewFeed(t, st, "https://example.com/feed", store.CategoryArticle)
	entry := testsupport.NewEntry(feed, "guid-dup", "Duplicate")

	if err := st.MarkProcessed(ctx, entry, ""); err != nil {
		t.Fatalf("first MarkProcessed: %v", err)
	}
	err := st.MarkProcessed(ctx, entry, "")
	if !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}

	count, err := st.ProcessedCount(ctx)
	if err != nil {
		t.Fatalf("ProcessedCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("duplicate insert must not corrupt state, count=%d", count)
	}
}

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	last, err := st.LastSuccessfulRun(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulRun: %v", err)
	}
	if last != nil {
		t.Fatal("expected no successful runs yet")
	}

	runID, err := st.RecordRunStart(ctx)
	if err != nil {
		t.Fatalf("RecordRunStart: %v", err)
	}
	if runID == 0 {
		t.Fatal("expected run id")
	}
	if err := st.RecordRunFetched(ctx, runID, 7); err != nil {
		t.Fatalf("RecordRunFetched: %v", err)
	}
	if err := st.RecordRunComplete(ctx, runID, 5, 1); err != nil {
		t.Fatalf("RecordRunComplete: %v", err)
	}

	details, err := st.RunDetails(ctx, runID)
	if err != nil {
		t.Fatalf("RunDetails: %v", err)
	}
	if details.Run.Status != store.RunCompleted {
		t.Fatalf("expected completed status, got %s", details.Run.Status)
	}
	if details.Run.ItemsFetched != 7 || details.Run.ItemsProcessed != 5 || details.Run.ItemsFailed != 1 {
		t.Fatalf("unexpected counts: %+v", details.Run)
	}

	last, err = st.LastSuccessfulRun(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulRun: %v", err)
	}
	if last == nil {
		t.Fatal("expected last successful run timestamp")
	}
}

func TestRecordRunStartFailsStaleRunningRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Simulate a crashed prior process: a run started but never completed.
	staleID, err := st.RecordRunStart(ctx)
	if err != nil {
		t.Fatalf("RecordRunStart: %v", err)
	}

	newID, err := st.RecordRunStart(ctx)
	if err != nil {
		t.Fatalf("second RecordRunStart: %v", err)
	}
	if newID == staleID {
		t.Fatal("expected a fresh run id")
	}

	stale, err := st.RunDetails(ctx, staleID)
	if err != nil {
		t.Fatalf("RunDetails stale: %v", err)
	}
	if stale.Run.Status != store.RunFailed {
		t.Fatalf("stale run should be failed, got %s", stale.Run.Status)
	}
	if stale.Run.CompletedAt == nil {
		t.Fatal("stale run should have a completion time")
	}

	current, err := st.CurrentRun(ctx)
	if err != nil {
		t.Fatalf("CurrentRun: %v", err)
	}
	if current == nil || current.ID != newID {
		t.Fatalf("expected exactly the new run running, got %+v", current)
	}
}

func TestRunDetailsAttributesEntriesByWindow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	feed := testsupport.NewFeed(t, st, "https://example.com/feed", store.CategoryArticle)

	runID, err := st.RecordRunStart(ctx)
	if err != nil {
		t.Fatalf("RecordRunStart: %v", err)
	}
	if err := st.MarkProcessed(ctx, testsupport.NewEntry(feed, "in-window", "Inside"), "/vault/note.md"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := st.AddToRetryQueue(ctx, testsupport.NewEntry(feed, "failed-1", "Failed"), "boom"); err != nil {
		t.Fatalf("AddToRetryQueue: %v", err)
	}
	if err := st.RecordRunComplete(ctx, runID, 1, 1); err != nil {
		t.Fatalf("RecordRunComplete: %v", err)
	}

	details, err := st.RunDetails(ctx, 0)
	if err != nil {
		t.Fatalf("RunDetails latest: %v", err)
	}
	if details.Run.ID != runID {
		t.Fatalf("latest run should be %d, got %d", runID, details.Run.ID)
	}
	if len(details.Entries) != 1 || details.Entries[0].GUID != "in-window" {
		t.Fatalf("unexpected entries: %+v", details.Entries)
	}
	if len(details.Failed) != 1 || details.Failed[0].GUID != "failed-1" {
		t.Fatalf("unexpected failures: %+v", details.Failed)
	}
}

func TestClipProcessingIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	path := "/vault/Clippings/Unprocessed/clip.md"

	processed, err := st.IsClipProcessed(ctx, path)
	if err != nil {
		t.Fatalf("IsClipProcessed: %v", err)
	}
	if processed {
		t.Fatal("fresh clip should not be processed")
	}

	if err := st.MarkClipProcessed(ctx, path, "", true, "AI-Engineering"); err != nil {
		t.Fatalf("MarkClipProcessed: %v", err)
	}
	// Second mark must neither error nor duplicate.
	if err := st.MarkClipProcessed(ctx, path, "", false, ""); err != nil {
		t.Fatalf("repeat MarkClipProcessed: %v", err)
	}

	clip, err := st.ClipByPath(ctx, path)
	if err != nil {
		t.Fatalf("ClipByPath: %v", err)
	}
	if clip == nil {
		t.Fatal("expected clip record")
	}
	if !clip.Promoted || clip.Category != "AI-Engineering" {
		t.Fatalf("first mark should win: %+v", clip)
	}
}

func TestFeedSubscriptionLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	feed, err := st.AddFeed(ctx, "https://example.com/rss", "Example", store.CategoryVideo)
	if err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	if feed.Category != store.CategoryVideo || !feed.Active {
		t.Fatalf("unexpected feed: %+v", feed)
	}

	if _, err := st.AddFeed(ctx, "https://example.com/rss", "Example", store.CategoryVideo); err == nil {
		t.Fatal("expected duplicate subscription error")
	}

	removed, err := st.RemoveFeed(ctx, "https://example.com/rss")
	if err != nil {
		t.Fatalf("RemoveFeed: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report success")
	}

	feeds, err := st.ListFeeds(ctx, "")
	if err != nil {
		t.Fatalf("ListFeeds: %v", err)
	}
	if len(feeds) != 0 {
		t.Fatalf("deactivated feed should not be listed, got %d", len(feeds))
	}

	// Removal deactivates rather than deletes, so re-adding reactivates.
	again, err := st.AddFeed(ctx, "https://example.com/rss", "Example Again", store.CategoryArticle)
	if err != nil {
		t.Fatalf("re-add feed: %v", err)
	}
	if again.ID != feed.ID {
		t.Fatalf("expected same row reactivated, got id %d vs %d", again.ID, feed.ID)
	}
	if again.Category != store.CategoryArticle {
		t.Fatalf("reactivation should update category, got %s", again.Category)
	}
}

func TestAddFeedRejectsUnknownCategory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.AddFeed(context.Background(), "https://example.com/x", "", store.Category("newsletter"))
	if !errors.Is(err, store.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestParseCategory(t *testing.T) {
	for _, valid := range []string{"article", "video", "audio"} {
		if _, err := store.ParseCategory(valid); err != nil {
			t.Fatalf("ParseCategory(%q): %v", valid, err)
		}
	}
	if _, err := store.ParseCategory("podcasts"); err == nil {
		t.Fatal("legacy category names must be rejected")
	}
	if _, err := store.ParseCategory(""); err == nil {
		t.Fatal("empty category must be rejected")
	}
}
