package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordRunStart inserts a new running pipeline run and returns its id. Any
// stale running rows left by a crashed prior process are force-transitioned
// to failed first, so at most one run is ever in the running state.
func (s *Store) RecordRunStart(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, completed_at = ? WHERE status = ?`,
		RunFailed, now, RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (started_at, status) VALUES (?, ?)`,
		now, RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// RecordRunFetched stores the fetched-item count once fetching completes, so
// observers can report progress against a total while the run executes.
func (s *Store) RecordRunFetched(ctx context.Context, runID int64, fetched int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET items_fetched = ? WHERE id = ?`,
		fetched, runID,
	)
	if err != nil {
		return fmt.Errorf("record run fetched: %w", err)
	}
	return nil
}

// RecordRunComplete marks a run completed with final counts.
func (s *Store) RecordRunComplete(ctx context.Context, runID int64, processed, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs
         SET completed_at = ?, items_processed = ?, items_failed = ?, status = ?
         WHERE id = ?`,
		formatTime(time.Now()), processed, failed, RunCompleted, runID,
	)
	if err != nil {
		return fmt.Errorf("record run complete: %w", err)
	}
	return nil
}

// LastSuccessfulRun returns the completion time of the most recent completed
// run, or nil when no run has completed.
func (s *Store) LastSuccessfulRun(ctx context.Context) (*time.Time, error) {
	var completedRaw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT completed_at FROM pipeline_runs
         WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		RunCompleted,
	).Scan(&completedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last successful run: %w", err)
	}
	return timePtr(completedRaw), nil
}

// RunOnDate returns the id of the most recent run started on the given day
// (interpreted in the day's location), or 0 when none exists.
func (s *Store) RunOnDate(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM pipeline_runs
         WHERE started_at >= ? AND started_at < ?
         ORDER BY id DESC LIMIT 1`,
		formatTime(start), formatTime(end),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("run on date: %w", err)
	}
	return id, nil
}

// CurrentRun returns the most recent running run, or nil when idle.
func (s *Store) CurrentRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs
         WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		RunRunning,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current run: %w", err)
	}
	return run, nil
}

// ProcessedSince counts entries completed at or after the given time. Used by
// the watch view to show progress for the running run.
func (s *Store) ProcessedSince(ctx context.Context, since time.Time) (int, string, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processed_entries WHERE processed_at >= ?`,
		formatTime(since),
	).Scan(&count)
	if err != nil {
		return 0, "", fmt.Errorf("count processed since: %w", err)
	}

	var title sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT entry_title FROM processed_entries
         WHERE processed_at >= ? ORDER BY processed_at DESC LIMIT 1`,
		formatTime(since),
	).Scan(&title)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return count, "", fmt.Errorf("latest processed since: %w", err)
	}
	return count, title.String, nil
}

// RunDetails returns a run report with the entries and retry failures whose
// timestamps fall inside the run window. runID 0 selects the most recent run.
// Attribution is by timestamp-range overlap, not a foreign key; back-to-back
// runs can misattribute boundary entries, which is acceptable for reporting.
func (s *Store) RunDetails(ctx context.Context, runID int64) (*RunDetails, error) {
	var row *sql.Row
	if runID == 0 {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs ORDER BY id DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`, runID)
	}
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run details: %w", err)
	}

	windowEnd := time.Now()
	if run.CompletedAt != nil {
		windowEnd = *run.CompletedAt
	}

	details := &RunDetails{Run: *run}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+processedColumns+` FROM processed_entries
         WHERE processed_at >= ? AND processed_at <= ?
         ORDER BY processed_at ASC`,
		formatTime(run.StartedAt), formatTime(windowEnd),
	)
	if err != nil {
		return nil, fmt.Errorf("run entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := scanProcessed(rows)
		if err != nil {
			return nil, err
		}
		details.Entries = append(details.Entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	failedRows, err := s.db.QueryContext(ctx,
		`SELECT `+retryColumns+` FROM retry_queue
         WHERE last_attempt_at >= ? AND last_attempt_at <= ?`,
		formatTime(run.StartedAt), formatTime(windowEnd),
	)
	if err != nil {
		return nil, fmt.Errorf("run failures: %w", err)
	}
	defer failedRows.Close()
	for failedRows.Next() {
		entry, err := scanRetry(failedRows)
		if err != nil {
			return nil, err
		}
		details.Failed = append(details.Failed, *entry)
	}
	return details, failedRows.Err()
}

const runColumns = "id, started_at, completed_at, items_fetched, items_processed, items_failed, status"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           int64
		startedRaw   sql.NullString
		completedRaw sql.NullString
		fetched      int
		processed    int
		failed       int
		statusRaw    string
	)
	if err := scanner.Scan(&id, &startedRaw, &completedRaw, &fetched, &processed, &failed, &statusRaw); err != nil {
		return nil, err
	}
	run := &Run{
		ID:             id,
		CompletedAt:    timePtr(completedRaw),
		ItemsFetched:   fetched,
		ItemsProcessed: processed,
		ItemsFailed:    failed,
		Status:         RunStatus(statusRaw),
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		run.StartedAt = started
	}
	return run, nil
}
