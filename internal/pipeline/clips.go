package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gleaner/internal/logging"
	"gleaner/internal/skill"
)

// ClipResult is the outcome of processing one captured clip.
type ClipResult struct {
	Path             string
	AlreadyProcessed bool
	Promoted         bool
	Category         string
	Title            string
	Insight          string
	NotePath         string
}

// BatchResult summarizes one pass over the unprocessed clips folder.
type BatchResult struct {
	Processed int
	Promoted  int
	Skipped   int
	Failed    int
}

// ProcessClip runs the clip-promotion skill for one captured clip. Clips
// already marked processed are skipped without spawning the tool.
func (p *Pipeline) ProcessClip(ctx context.Context, clipPath string) (*ClipResult, error) {
	processed, err := p.store.IsClipProcessed(ctx, clipPath)
	if err != nil {
		return nil, fmt.Errorf("check clip %s: %w", clipPath, err)
	}
	if processed {
		p.logger.Info("clip already processed", logging.String("clip", filepath.Base(clipPath)))
		return &ClipResult{Path: clipPath, AlreadyProcessed: true}, nil
	}

	p.logger.Info("processing clip", logging.String("clip", filepath.Base(clipPath)))

	stdout, err := p.runner.RunClip(ctx, clipPath)
	if err != nil {
		return nil, fmt.Errorf("clip %s: %w", filepath.Base(clipPath), err)
	}

	result := parseClipOutput(stdout)
	result.Path = clipPath
	result.NotePath = skill.ExtractNotePath(stdout, p.cfg.Paths.VaultDir, p.cfg.Processing.ClipsFolder)

	if result.Promoted && result.Title != "" && result.Category != "" && result.Insight != "" {
		if err := appendToDailyNote(p.cfg.Paths.VaultDir, result.Title, result.Category, result.Insight, time.Now()); err != nil {
			p.logger.Error("failed to append to daily note", logging.Error(err))
		}
		if err := p.notifier.NotifyClipPromoted(ctx, result.Title, result.Category); err != nil {
			p.logger.Warn("clip notification failed", logging.Error(err))
		}
	}

	if err := p.store.MarkClipProcessed(ctx, clipPath, result.NotePath, result.Promoted, result.Category); err != nil {
		return nil, fmt.Errorf("mark clip processed %s: %w", clipPath, err)
	}
	return result, nil
}

// ProcessClipBatch walks the unprocessed clips folder and processes every
// clip not yet marked done. Individual clip failures are logged and do not
// stop the batch; a failed clip stays unmarked and is retried next pass.
func (p *Pipeline) ProcessClipBatch(ctx context.Context) (*BatchResult, error) {
	clipsDir := filepath.Join(p.cfg.Paths.VaultDir, p.cfg.Processing.ClipsFolder)
	clipFiles, err := filepath.Glob(filepath.Join(clipsDir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan clips folder: %w", err)
	}

	result := &BatchResult{}
	if len(clipFiles) == 0 {
		p.logger.Info("no unprocessed clips found")
		return result, nil
	}

	p.logger.Info("batch processing clips", logging.Int("count", len(clipFiles)))
	for _, clipFile := range clipFiles {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		clip, err := p.ProcessClip(ctx, clipFile)
		if err != nil {
			p.logger.Error("clip failed", logging.String("clip", filepath.Base(clipFile)), logging.Error(err))
			if nerr := p.notifier.NotifyError(ctx, err, filepath.Base(clipFile)); nerr != nil {
				p.logger.Warn("error notification failed", logging.Error(nerr))
			}
			result.Failed++
			continue
		}
		if clip.AlreadyProcessed {
			result.Skipped++
			continue
		}
		result.Processed++
		if clip.Promoted {
			result.Promoted++
		}
	}

	p.logger.Info("batch complete",
		logging.Int("processed", result.Processed),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

// parseClipOutput reads the PROMOTED/CATEGORY/TITLE/INSIGHT marker lines the
// promotion skill prints to stdout.
func parseClipOutput(stdout string) *ClipResult {
	result := &ClipResult{}
	for _, line := range strings.Split(stdout, "\n") {
		switch {
		case strings.HasPrefix(line, "PROMOTED:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "PROMOTED:"))
			result.Promoted = strings.EqualFold(value, "yes")
		case strings.HasPrefix(line, "CATEGORY:"):
			result.Category = strings.TrimSpace(strings.TrimPrefix(line, "CATEGORY:"))
		case strings.HasPrefix(line, "TITLE:"):
			result.Title = strings.TrimSpace(strings.TrimPrefix(line, "TITLE:"))
		case strings.HasPrefix(line, "INSIGHT:"):
			result.Insight = strings.TrimSpace(strings.TrimPrefix(line, "INSIGHT:"))
		}
	}
	return result
}
