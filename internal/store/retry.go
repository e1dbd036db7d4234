package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BackoffSchedule is the fixed wait sequence between retry attempts. An entry
// whose attempt count would run past the end of the schedule is dropped for
// good instead of rescheduled.
var BackoffSchedule = []time.Duration{
	1 * time.Hour,
	4 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
}

// AddToRetryQueue schedules a transiently failed entry for re-attempt. The
// first failure inserts with the initial backoff; subsequent failures bump the
// attempt count and push next_retry_at further out. Exhausting the schedule
// removes the entry permanently.
func (s *Store) AddToRetryQueue(ctx context.Context, entry Entry, lastError string) error {
	now := time.Now()

	var retryCount int
	err := s.db.QueryRowContext(ctx,
		`SELECT retry_count FROM retry_queue WHERE entry_guid = ?`, entry.GUID,
	).Scan(&retryCount)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO retry_queue
                (entry_guid, feed_id, entry_url, entry_title, category,
                 first_failed_at, last_attempt_at, next_retry_at, retry_count, last_error)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			entry.GUID,
			entry.FeedID,
			entry.URL,
			nullableString(entry.Title),
			entry.Category,
			formatTime(now),
			formatTime(now),
			formatTime(now.Add(BackoffSchedule[0])),
			nullableString(lastError),
		)
		if err != nil {
			return fmt.Errorf("insert retry entry: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("check retry entry: %w", err)
	}

	retryCount++
	if retryCount >= len(BackoffSchedule) {
		return s.RemoveFromRetryQueue(ctx, entry.GUID)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE retry_queue
         SET retry_count = ?, last_attempt_at = ?, next_retry_at = ?, last_error = ?
         WHERE entry_guid = ?`,
		retryCount,
		formatTime(now),
		formatTime(now.Add(BackoffSchedule[retryCount])),
		nullableString(lastError),
		entry.GUID,
	)
	if err != nil {
		return fmt.Errorf("reschedule retry entry: %w", err)
	}
	return nil
}

// RetryCandidates returns entries due for re-attempt, earliest-due first.
// Guids already present in processed_entries are excluded by the query itself
// so a stale retry row can never race a direct success into a duplicate
// insert.
func (s *Store) RetryCandidates(ctx context.Context) ([]*RetryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+retryColumns+` FROM retry_queue
         WHERE next_retry_at <= ?
           AND entry_guid NOT IN (SELECT entry_guid FROM processed_entries)
         ORDER BY next_retry_at`,
		formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("query retry candidates: %w", err)
	}
	defer rows.Close()

	var entries []*RetryEntry
	for rows.Next() {
		entry, err := scanRetry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RetryQueueSize returns the number of entries awaiting retry.
func (s *Store) RetryQueueSize(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM retry_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count retry queue: %w", err)
	}
	return count, nil
}

// RemoveFromRetryQueue deletes a retry entry after success or give-up.
func (s *Store) RemoveFromRetryQueue(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM retry_queue WHERE entry_guid = ?`, guid)
	if err != nil {
		return fmt.Errorf("remove retry entry: %w", err)
	}
	return nil
}

const retryColumns = "id, entry_guid, feed_id, entry_url, entry_title, category, first_failed_at, last_attempt_at, next_retry_at, retry_count, last_error"

func scanRetry(scanner interface{ Scan(dest ...any) error }) (*RetryEntry, error) {
	var (
		id          int64
		guid        string
		feedID      int64
		url         string
		title       sql.NullString
		categoryRaw string
		firstRaw    sql.NullString
		lastRaw     sql.NullString
		nextRaw     sql.NullString
		count       int
		lastError   sql.NullString
	)
	if err := scanner.Scan(&id, &guid, &feedID, &url, &title, &categoryRaw, &firstRaw, &lastRaw, &nextRaw, &count, &lastError); err != nil {
		return nil, err
	}
	entry := &RetryEntry{
		ID:         id,
		GUID:       guid,
		FeedID:     feedID,
		URL:        url,
		Title:      title.String,
		Category:   Category(categoryRaw),
		RetryCount: count,
		LastError:  lastError.String,
	}
	if first, err := parseTimeString(firstRaw.String); err == nil {
		entry.FirstFailedAt = first
	}
	if last, err := parseTimeString(lastRaw.String); err == nil {
		entry.LastAttemptAt = last
	}
	if next, err := parseTimeString(nextRaw.String); err == nil {
		entry.NextRetryAt = next
	}
	return entry, nil
}
