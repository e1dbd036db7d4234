package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"gleaner/internal/logging"
)

// ErrLockHeld reports that another pipeline run holds the lock.
var ErrLockHeld = errors.New("another pipeline run is already in progress")

// runLock is an advisory flock around a full pipeline run. Under --force the
// lock cannot be stolen from the holder, so a forced run proceeds without
// holding it and relies on stale-run cleanup to reconcile state.
type runLock struct {
	path string
	lock *flock.Flock
	held bool
}

func acquireRunLock(path string, force bool, logger *slog.Logger) (*runLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	rl := &runLock{path: path, lock: flock.New(path)}
	ok, err := rl.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		if !force {
			return nil, ErrLockHeld
		}
		logger.Warn("run lock held by another process, continuing under force",
			logging.String("lock", path),
		)
		return rl, nil
	}

	rl.held = true
	// Owner token aids debugging when a lock file lingers after a crash.
	_ = os.WriteFile(path, []byte(uuid.NewString()+"\n"), 0o644)
	return rl, nil
}

func (rl *runLock) release(logger *slog.Logger) {
	if rl == nil || !rl.held {
		return
	}
	if err := rl.lock.Unlock(); err != nil {
		logger.Warn("failed to release run lock", logging.Error(err))
	}
	rl.held = false
}
