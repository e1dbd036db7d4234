package pipeline

import (
	"time"

	"gleaner/internal/store"
)

// Failure records one entry that did not produce a note during a run.
type Failure struct {
	Entry     store.Entry
	Reason    string
	Permanent bool
}

// Result summarizes one pipeline run. Failed counts transient failures only;
// permanent failures are tracked separately because they are never retried.
type Result struct {
	RunID             int64
	DryRun            bool
	Fetched           int
	Processed         int
	Failed            int
	PermanentFailures int
	Retried           int
	Skipped           int
	Duration          time.Duration
	Failures          []Failure
}
