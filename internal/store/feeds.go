package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const feedColumns = "id, url, title, category, added_at, last_fetched_at, is_active"

// AddFeed inserts a new feed subscription. Re-adding a deactivated feed
// reactivates it instead of failing on the URL constraint.
func (s *Store) AddFeed(ctx context.Context, url, title string, category Category) (*Feed, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, err
	}

	existing, err := s.FeedByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Active {
			return nil, fmt.Errorf("feed already subscribed: %s", url)
		}
		_, err := s.db.ExecContext(ctx,
			`UPDATE feeds SET is_active = 1, title = ?, category = ? WHERE id = ?`,
			nullableString(title), category, existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("reactivate feed: %w", err)
		}
		return s.FeedByURL(ctx, url)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feeds (url, title, category, added_at, is_active) VALUES (?, ?, ?, ?, 1)`,
		url, nullableString(title), category, formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert feed: %w", err)
	}
	return s.FeedByURL(ctx, url)
}

// RemoveFeed deactivates a feed subscription. The row is kept so processed
// entries retain a valid feed reference.
func (s *Store) RemoveFeed(ctx context.Context, url string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE feeds SET is_active = 0 WHERE url = ? AND is_active = 1`, url)
	if err != nil {
		return false, fmt.Errorf("deactivate feed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// FeedByURL returns the feed with the given URL, or nil when absent.
func (s *Store) FeedByURL(ctx context.Context, url string) (*Feed, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)
	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feed by url: %w", err)
	}
	return feed, nil
}

// ListFeeds returns active feeds, optionally filtered by category, ordered by
// insertion.
func (s *Store) ListFeeds(ctx context.Context, category Category) ([]*Feed, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE is_active = 1 ORDER BY id`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE is_active = 1 AND category = ? ORDER BY id`, category)
	}
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

// TouchFeedFetched updates the last fetch timestamp for a feed.
func (s *Store) TouchFeedFetched(ctx context.Context, feedID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE feeds SET last_fetched_at = ? WHERE id = ?`,
		formatTime(time.Now()), feedID,
	)
	if err != nil {
		return fmt.Errorf("touch feed: %w", err)
	}
	return nil
}

func scanFeed(scanner interface{ Scan(dest ...any) error }) (*Feed, error) {
	var (
		id          int64
		url         string
		title       sql.NullString
		categoryRaw string
		addedRaw    sql.NullString
		fetchedRaw  sql.NullString
		active      int
	)
	if err := scanner.Scan(&id, &url, &title, &categoryRaw, &addedRaw, &fetchedRaw, &active); err != nil {
		return nil, err
	}

	feed := &Feed{
		ID:            id,
		URL:           url,
		Title:         title.String,
		Category:      Category(categoryRaw),
		Active:        active != 0,
		LastFetchedAt: timePtr(fetchedRaw),
	}
	if added, err := parseTimeString(addedRaw.String); err == nil {
		feed.AddedAt = added
	}
	return feed, nil
}
