package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs removes files in dir matching pattern that are older than
// retentionDays. A retentionDays value of 0 disables pruning. Files that
// cannot be inspected or removed are skipped.
func CleanupOldLogs(logger *slog.Logger, dir, pattern string, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			matched, err := filepath.Match(pattern, entry.Name())
			if err != nil || !matched {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if logger != nil {
				logger.Warn("log retention remove failed; file remains",
					String("path", path),
					Error(err),
				)
			}
			continue
		}
		if logger != nil {
			logger.Debug("log pruned", String("path", path))
		}
	}
}
