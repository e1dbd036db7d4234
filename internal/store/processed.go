package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IsProcessed reports whether an entry guid has already been completed.
func (s *Store) IsProcessed(ctx context.Context, guid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_entries WHERE entry_guid = ?`, guid,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records an entry as successfully completed. The guid is the
// sole dedupe key; inserting a duplicate returns ErrAlreadyProcessed without
// touching existing state.
func (s *Store) MarkProcessed(ctx context.Context, entry Entry, notePath string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_entries
            (entry_guid, feed_id, entry_url, entry_title, published_at, processed_at, note_path)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.GUID,
		entry.FeedID,
		entry.URL,
		nullableString(entry.Title),
		nullableTime(entry.PublishedAt),
		formatTime(time.Now()),
		nullableString(notePath),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, entry.GUID)
	}
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// ProcessedCount returns the total number of completed entries.
func (s *Store) ProcessedCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processed_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count processed: %w", err)
	}
	return count, nil
}

const processedColumns = "id, entry_guid, feed_id, entry_url, entry_title, published_at, processed_at, note_path"

func scanProcessed(scanner interface{ Scan(dest ...any) error }) (*ProcessedEntry, error) {
	var (
		id           int64
		guid         string
		feedID       int64
		url          string
		title        sql.NullString
		publishedRaw sql.NullString
		processedRaw sql.NullString
		notePath     sql.NullString
	)
	if err := scanner.Scan(&id, &guid, &feedID, &url, &title, &publishedRaw, &processedRaw, &notePath); err != nil {
		return nil, err
	}
	entry := &ProcessedEntry{
		ID:          id,
		GUID:        guid,
		FeedID:      feedID,
		URL:         url,
		Title:       title.String,
		PublishedAt: timePtr(publishedRaw),
		NotePath:    notePath.String,
	}
	if processed, err := parseTimeString(processedRaw.String); err == nil {
		entry.ProcessedAt = processed
	}
	return entry, nil
}
