package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IsClipProcessed reports whether a clip file has already been handled.
func (s *Store) IsClipProcessed(ctx context.Context, path string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM clips_processed WHERE file_path = ?`, path,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check clip processed: %w", err)
	}
	return true, nil
}

// MarkClipProcessed records a clip as handled. Marking the same path twice is
// a no-op rather than an error.
func (s *Store) MarkClipProcessed(ctx context.Context, path, notePath string, promoted bool, category string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO clips_processed
            (file_path, processed_at, note_path, promoted, category)
         VALUES (?, ?, ?, ?, ?)`,
		path,
		formatTime(time.Now()),
		nullableString(notePath),
		boolToInt(promoted),
		nullableString(category),
	)
	if err != nil {
		return fmt.Errorf("mark clip processed: %w", err)
	}
	return nil
}

// ClipByPath returns the completion marker for a clip, or nil when absent.
func (s *Store) ClipByPath(ctx context.Context, path string) (*Clip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, processed_at, note_path, promoted, category
         FROM clips_processed WHERE file_path = ?`, path,
	)

	var (
		id           int64
		filePath     string
		processedRaw sql.NullString
		notePath     sql.NullString
		promoted     int
		category     sql.NullString
	)
	err := row.Scan(&id, &filePath, &processedRaw, &notePath, &promoted, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clip by path: %w", err)
	}

	clip := &Clip{
		ID:       id,
		Path:     filePath,
		NotePath: notePath.String,
		Promoted: promoted != 0,
		Category: category.String,
	}
	if processed, err := parseTimeString(processedRaw.String); err == nil {
		clip.ProcessedAt = processed
	}
	return clip, nil
}
