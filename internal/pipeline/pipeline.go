package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gleaner/internal/config"
	"gleaner/internal/feeds"
	"gleaner/internal/logging"
	"gleaner/internal/notifications"
	"gleaner/internal/skill"
	"gleaner/internal/store"
)

// FeedSource yields candidate entries for a run. PreviewEntries must return
// the same entries as FetchNewEntries without recording feed fetch times.
type FeedSource interface {
	FetchNewEntries(ctx context.Context, limit int) ([]store.Entry, error)
	PreviewEntries(ctx context.Context, limit int) ([]store.Entry, error)
}

// SkillRunner invokes the external tool for entries and clips.
type SkillRunner interface {
	Run(ctx context.Context, entry store.Entry) skill.Result
	RunClip(ctx context.Context, clipPath string) (string, error)
	ValidateSkills() []string
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithFeedSource overrides the feed source (primarily for tests).
func WithFeedSource(source FeedSource) Option {
	return func(p *Pipeline) {
		if source != nil {
			p.feeds = source
		}
	}
}

// WithSkillRunner overrides the skill runner (primarily for tests).
func WithSkillRunner(runner SkillRunner) Option {
	return func(p *Pipeline) {
		if runner != nil {
			p.runner = runner
		}
	}
}

// WithNotifier overrides the notification service (primarily for tests).
func WithNotifier(notifier notifications.Service) Option {
	return func(p *Pipeline) {
		if notifier != nil {
			p.notifier = notifier
		}
	}
}

// Options control a single pipeline run.
type Options struct {
	// DryRun fetches and reports candidates without mutating any state.
	DryRun bool
	// Limit caps the number of items attempted; zero uses the configured
	// fetch limit.
	Limit int
	// Force proceeds even when another run appears to hold the lock.
	Force bool
}

// Pipeline orchestrates one full run: acquire the lock, gather retry
// candidates and fresh entries, invoke the skill per item, and record
// outcomes in the store.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	feeds    FeedSource
	runner   SkillRunner
	notifier notifications.Service
}

// New wires a pipeline from configuration and an open store.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("pipeline requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	runner, err := skill.NewRunner(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build skill runner: %w", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		store:    st,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		feeds:    feeds.NewManager(st, logger),
		runner:   runner,
		notifier: notifications.NewService(cfg),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type workItem struct {
	entry     store.Entry
	fromRetry bool
}

// Run executes one pipeline pass. Retry candidates whose backoff has elapsed
// go first, then fresh feed entries; duplicates collapse onto the retry slot.
// A run that aborts after acquiring the lock fires a failure notification.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	lock, err := acquireRunLock(p.cfg.LockPath(), opts.Force, p.logger)
	if err != nil {
		return nil, err
	}
	defer lock.release(p.logger)

	result, err := p.run(ctx, opts)
	if err != nil {
		if nerr := p.notifier.NotifyRunFailed(ctx, err); nerr != nil {
			p.logger.Warn("failure notification failed", logging.Error(nerr))
		}
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, opts Options) (*Result, error) {
	if missing := p.runner.ValidateSkills(); len(missing) > 0 {
		return nil, fmt.Errorf("missing skills: %s", strings.Join(missing, ", "))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = p.cfg.Processing.FetchLimit
	}

	start := time.Now()
	work, err := p.gatherWork(ctx, limit, opts.DryRun)
	if err != nil {
		return nil, err
	}

	result := &Result{Fetched: len(work), DryRun: opts.DryRun}

	if opts.DryRun {
		for _, item := range work {
			source := "feed"
			if item.fromRetry {
				source = "retry"
			}
			p.logger.Info("would process",
				logging.String("title", item.entry.Title),
				logging.String(logging.FieldGUID, item.entry.GUID),
				logging.String(logging.FieldCategory, string(item.entry.Category)),
				logging.String("source", source),
			)
		}
		result.Skipped = len(work)
		result.Duration = time.Since(start)
		return result, nil
	}

	runID, err := p.store.RecordRunStart(ctx)
	if err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}
	result.RunID = runID
	if err := p.store.RecordRunFetched(ctx, runID, len(work)); err != nil {
		return nil, fmt.Errorf("record fetched count: %w", err)
	}

	p.logger.Info("run started",
		logging.Int64(logging.FieldRunID, runID),
		logging.Int("items", len(work)),
	)

	for _, item := range work {
		if ctx.Err() != nil {
			p.logger.Warn("run interrupted", logging.Error(ctx.Err()))
			break
		}
		if err := p.processItem(ctx, item, result); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	if err := p.store.RecordRunComplete(ctx, runID, result.Processed, result.Failed+result.PermanentFailures); err != nil {
		return nil, fmt.Errorf("record run complete: %w", err)
	}

	p.logger.Info("run completed",
		logging.Int64(logging.FieldRunID, runID),
		logging.Int("processed", result.Processed),
		logging.Int("failed", result.Failed),
		logging.Int("permanent", result.PermanentFailures),
		logging.Duration("duration", result.Duration),
	)

	if result.Fetched > 0 {
		if err := p.notifier.NotifyRunCompleted(ctx, result.Processed, result.Failed, result.PermanentFailures, result.Duration); err != nil {
			p.logger.Warn("run notification failed", logging.Error(err))
		}
	}
	return result, nil
}

func (p *Pipeline) gatherWork(ctx context.Context, limit int, preview bool) ([]workItem, error) {
	candidates, err := p.store.RetryCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load retry candidates: %w", err)
	}

	seen := make(map[string]struct{}, len(candidates))
	work := make([]workItem, 0, len(candidates))
	for _, candidate := range candidates {
		entry := candidate.Entry()
		seen[entry.GUID] = struct{}{}
		work = append(work, workItem{entry: entry, fromRetry: true})
	}

	fetch := p.feeds.FetchNewEntries
	if preview {
		fetch = p.feeds.PreviewEntries
	}
	fresh, err := fetch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch feeds: %w", err)
	}
	for _, entry := range fresh {
		if _, dup := seen[entry.GUID]; dup {
			continue
		}
		seen[entry.GUID] = struct{}{}
		work = append(work, workItem{entry: entry})
	}

	if limit > 0 && len(work) > limit {
		work = work[:limit]
	}
	return work, nil
}

func (p *Pipeline) processItem(ctx context.Context, item workItem, result *Result) error {
	entry := item.entry

	// Guard against entries processed by a concurrent forced run.
	processed, err := p.store.IsProcessed(ctx, entry.GUID)
	if err != nil {
		return fmt.Errorf("check processed %s: %w", entry.GUID, err)
	}
	if processed {
		result.Skipped++
		if item.fromRetry {
			if err := p.store.RemoveFromRetryQueue(ctx, entry.GUID); err != nil {
				return fmt.Errorf("drop processed retry %s: %w", entry.GUID, err)
			}
		}
		return nil
	}

	outcome := p.runner.Run(ctx, entry)

	switch {
	case outcome.Success:
		if err := p.store.MarkProcessed(ctx, entry, outcome.NotePath); err != nil {
			if errors.Is(err, store.ErrAlreadyProcessed) {
				result.Skipped++
				return nil
			}
			return fmt.Errorf("mark processed %s: %w", entry.GUID, err)
		}
		if item.fromRetry {
			if err := p.store.RemoveFromRetryQueue(ctx, entry.GUID); err != nil {
				return fmt.Errorf("clear retry %s: %w", entry.GUID, err)
			}
			result.Retried++
		}
		result.Processed++

	case outcome.Permanent:
		// Never queued for retry; the content will not become extractable.
		p.logger.Warn(fmt.Sprintf("[PERMANENT] %s: %s", entry.Title, outcome.Error),
			logging.String(logging.FieldGUID, entry.GUID),
		)
		if item.fromRetry {
			if err := p.store.RemoveFromRetryQueue(ctx, entry.GUID); err != nil {
				return fmt.Errorf("clear retry %s: %w", entry.GUID, err)
			}
		}
		result.PermanentFailures++
		result.Failures = append(result.Failures, Failure{Entry: entry, Reason: outcome.Error, Permanent: true})

	default:
		if err := p.store.AddToRetryQueue(ctx, entry, outcome.Error); err != nil {
			return fmt.Errorf("queue retry %s: %w", entry.GUID, err)
		}
		result.Failed++
		result.Failures = append(result.Failures, Failure{Entry: entry, Reason: outcome.Error})
	}
	return nil
}
