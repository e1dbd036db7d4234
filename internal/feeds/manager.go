package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"gleaner/internal/logging"
	"gleaner/internal/store"
)

// Fetcher retrieves and parses a single feed document.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error)
}

type gofeedFetcher struct {
	parser *gofeed.Parser
}

func (f gofeedFetcher) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	return f.parser.ParseURLWithContext(feedURL, ctx)
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithFetcher injects a custom feed fetcher (primarily for tests).
func WithFetcher(fetcher Fetcher) Option {
	return func(m *Manager) {
		if fetcher != nil {
			m.fetcher = fetcher
		}
	}
}

// Manager owns feed subscriptions and turns feed items into candidate
// entries for the pipeline.
type Manager struct {
	store   *store.Store
	logger  *slog.Logger
	fetcher Fetcher
}

// NewManager builds a feed manager on top of the store.
func NewManager(st *store.Store, logger *slog.Logger, opts ...Option) *Manager {
	manager := &Manager{
		store:   st,
		logger:  logging.NewComponentLogger(logger, "feeds"),
		fetcher: gofeedFetcher{parser: gofeed.NewParser()},
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager
}

// FetchNewEntries polls every active feed and returns entries that have not
// been processed yet, newest first. A feed that fails to fetch is logged and
// skipped; one broken feed must not starve the rest. limit caps the result
// when positive. Each successful poll records the feed's fetch time.
func (m *Manager) FetchNewEntries(ctx context.Context, limit int) ([]store.Entry, error) {
	return m.fetchEntries(ctx, limit, true)
}

// PreviewEntries behaves like FetchNewEntries but leaves last_fetched_at
// untouched. Read-only callers (status, dry runs) use this so a look at the
// pending backlog never mutates feed rows.
func (m *Manager) PreviewEntries(ctx context.Context, limit int) ([]store.Entry, error) {
	return m.fetchEntries(ctx, limit, false)
}

func (m *Manager) fetchEntries(ctx context.Context, limit int, recordFetch bool) ([]store.Entry, error) {
	subscriptions, err := m.store.ListFeeds(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	var entries []store.Entry
	for _, feed := range subscriptions {
		parsed, err := m.fetcher.Fetch(ctx, feed.URL)
		if err != nil {
			m.logger.Warn("feed fetch failed",
				logging.Int64(logging.FieldFeedID, feed.ID),
				logging.String("url", feed.URL),
				logging.Error(err),
			)
			continue
		}
		if recordFetch {
			if err := m.store.TouchFeedFetched(ctx, feed.ID); err != nil {
				m.logger.Warn("record feed fetch time", logging.Error(err))
			}
		}

		fresh := 0
		for _, item := range parsed.Items {
			entry, ok := itemToEntry(item, feed)
			if !ok {
				continue
			}
			processed, err := m.store.IsProcessed(ctx, entry.GUID)
			if err != nil {
				return nil, fmt.Errorf("check processed %s: %w", entry.GUID, err)
			}
			if processed {
				continue
			}
			entries = append(entries, entry)
			fresh++
		}
		m.logger.Debug("feed polled",
			logging.Int64(logging.FieldFeedID, feed.ID),
			logging.String("title", feed.Title),
			logging.Int("items", len(parsed.Items)),
			logging.Int("new", fresh),
		)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return publishedOrZero(entries[i]).After(publishedOrZero(entries[j]))
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// AddFeed subscribes to a feed. An empty category is auto-detected from the
// URL, and an empty title falls back to the feed's own title when the feed
// is reachable.
func (m *Manager) AddFeed(ctx context.Context, feedURL, title string, category store.Category) (*store.Feed, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	if category == "" {
		category = DetectCategory(feedURL)
	}

	if strings.TrimSpace(title) == "" {
		if parsed, err := m.fetcher.Fetch(ctx, feedURL); err == nil {
			title = strings.TrimSpace(parsed.Title)
		} else {
			m.logger.Debug("title probe failed", logging.String("url", feedURL), logging.Error(err))
		}
	}
	if strings.TrimSpace(title) == "" {
		title = feedURL
	}

	feed, err := m.store.AddFeed(ctx, feedURL, title, category)
	if err != nil {
		return nil, err
	}
	m.logger.Info("feed added",
		logging.Int64(logging.FieldFeedID, feed.ID),
		logging.String("title", feed.Title),
		logging.String(logging.FieldCategory, string(feed.Category)),
	)
	return feed, nil
}

// RemoveFeed unsubscribes from a feed. Returns false when the URL is not a
// known active subscription.
func (m *Manager) RemoveFeed(ctx context.Context, feedURL string) (bool, error) {
	removed, err := m.store.RemoveFeed(ctx, feedURL)
	if err != nil {
		return false, err
	}
	if removed {
		m.logger.Info("feed removed", logging.String("url", feedURL))
	}
	return removed, nil
}

// ListFeeds returns active subscriptions, optionally filtered by category.
func (m *Manager) ListFeeds(ctx context.Context, category store.Category) ([]*store.Feed, error) {
	return m.store.ListFeeds(ctx, category)
}

// DetectCategory guesses a category from the feed URL host. YouTube feeds
// carry video content; everything else defaults to article.
func DetectCategory(feedURL string) store.Category {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return store.CategoryArticle
	}
	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	switch {
	case host == "youtube.com" || host == "youtu.be" || strings.HasSuffix(host, ".youtube.com"):
		return store.CategoryVideo
	default:
		return store.CategoryArticle
	}
}

func itemToEntry(item *gofeed.Item, feed *store.Feed) (store.Entry, bool) {
	if item == nil {
		return store.Entry{}, false
	}
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return store.Entry{}, false
	}
	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = link
	}

	entry := store.Entry{
		GUID:      guid,
		Title:     strings.TrimSpace(item.Title),
		URL:       link,
		Content:   item.Content,
		FeedID:    feed.ID,
		FeedTitle: feed.Title,
		Category:  feed.Category,
	}
	if entry.Title == "" {
		entry.Title = link
	}
	if item.Author != nil {
		entry.Author = strings.TrimSpace(item.Author.Name)
	}
	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		entry.PublishedAt = &published
	}
	return entry, true
}

func publishedOrZero(entry store.Entry) time.Time {
	if entry.PublishedAt == nil {
		return time.Time{}
	}
	return *entry.PublishedAt
}
