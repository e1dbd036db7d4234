package skill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gleaner/internal/config"
	"gleaner/internal/logging"
	"gleaner/internal/store"
)

// nestedSessionVar is cleared in the child environment; the tool refuses to
// run when it believes it is nested inside another session.
const nestedSessionVar = "CLAUDECODE"

const errorExcerptLen = 200

// permanentFailurePatterns mark content that will never be extractable, so
// retrying is pointless.
var permanentFailurePatterns = []string{
	"paywall",
	"behind a paywall",
	"subscription required",
	"subscribers only",
	"premium content",
	"sign in to read",
	"this article appears to be behind",
	"could only extract the headline",
	"copy/paste the article text",
}

// Result is the classified outcome of one skill invocation.
type Result struct {
	Success   bool
	NotePath  string
	Error     string
	Stdout    string
	Stderr    string
	Permanent bool
}

// Profile maps a category to its tool invocation parameters.
type Profile struct {
	Skill        string
	Timeout      time.Duration
	OutputFolder string
}

// ExecResult carries the raw output of a completed subprocess.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor abstracts subprocess execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, env []string) (ExecResult, error)
}

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(r *Runner) {
		if executor != nil {
			r.exec = executor
		}
	}
}

// Runner invokes the external content-processing tool per entry and
// classifies the outcome.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	exec     Executor
	profiles map[store.Category]Profile
}

// NewRunner builds a runner with one invocation profile per category.
// Category coverage is fixed here, so dispatch never sees an unmapped
// category at processing time.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	runner := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "skill"),
		exec:   commandExecutor{},
		profiles: map[store.Category]Profile{
			store.CategoryArticle: {
				Skill:        "article",
				Timeout:      time.Duration(cfg.Processing.ArticleTimeout) * time.Second,
				OutputFolder: cfg.Processing.ArticleFolder,
			},
			store.CategoryVideo: {
				Skill:        "youtube",
				Timeout:      time.Duration(cfg.Processing.VideoTimeout) * time.Second,
				OutputFolder: cfg.Processing.VideoFolder,
			},
			store.CategoryAudio: {
				Skill:        "podcast",
				Timeout:      time.Duration(cfg.Processing.AudioTimeout) * time.Second,
				OutputFolder: cfg.Processing.AudioFolder,
			},
		},
	}
	for _, category := range store.Categories() {
		profile := runner.profiles[category]
		if profile.Timeout <= 0 {
			return nil, fmt.Errorf("category %s: timeout must be positive", category)
		}
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Profile returns the invocation profile for a category.
func (r *Runner) Profile(category store.Category) (Profile, bool) {
	profile, ok := r.profiles[category]
	return profile, ok
}

// ValidateSkills checks that every category's skill is installed under the
// primary plugin directory. It returns the missing skill names.
func (r *Runner) ValidateSkills() []string {
	pluginDirs := r.cfg.PluginDirs()
	if len(pluginDirs) == 0 {
		return nil
	}
	var missing []string
	for _, category := range store.Categories() {
		profile := r.profiles[category]
		skillPath := filepath.Join(pluginDirs[0], "skills", profile.Skill)
		if _, err := os.Stat(skillPath); err != nil {
			missing = append(missing, profile.Skill)
		}
	}
	return missing
}

// Run invokes the skill for an entry and classifies the result.
func (r *Runner) Run(ctx context.Context, entry store.Entry) Result {
	profile, ok := r.profiles[entry.Category]
	if !ok {
		return Result{Error: fmt.Sprintf("no profile for category %q", entry.Category)}
	}

	r.logger.Info("processing entry",
		logging.String("title", entry.Title),
		logging.String(logging.FieldGUID, entry.GUID),
		logging.String(logging.FieldCategory, string(entry.Category)),
	)

	start := time.Now()
	execResult, err := r.invoke(ctx, profile.Skill, entry.URL, profile.Timeout)
	duration := time.Since(start)

	if err != nil {
		return r.classifySpawnError(err, profile, duration)
	}

	if execResult.ExitCode != 0 {
		// Error text lands on stdout or stderr depending on the tool.
		errorOutput := strings.TrimSpace(execResult.Stderr)
		if errorOutput == "" {
			errorOutput = strings.TrimSpace(execResult.Stdout)
		}
		message := fmt.Sprintf("skill exited with code %d: %s", execResult.ExitCode, truncate(errorOutput, errorExcerptLen))
		r.logger.Error("skill failed",
			logging.Duration("duration", duration),
			logging.String("error", truncate(errorOutput, errorExcerptLen)),
		)
		return Result{Error: message, Stdout: execResult.Stdout, Stderr: execResult.Stderr}
	}

	notePath := ExtractNotePath(execResult.Stdout, r.cfg.Paths.VaultDir, profile.OutputFolder)
	if notePath == "" {
		notePath = FindRecentNote(filepath.Join(r.cfg.Paths.VaultDir, profile.OutputFolder), start)
	}

	if notePath == "" {
		outputLower := strings.ToLower(execResult.Stdout)
		for _, pattern := range permanentFailurePatterns {
			if strings.Contains(outputLower, pattern) {
				r.logger.Warn("content not extractable",
					logging.Duration("duration", duration),
					logging.String("title", entry.Title),
				)
				return Result{
					Error:     "content behind paywall or not extractable",
					Stdout:    execResult.Stdout,
					Stderr:    execResult.Stderr,
					Permanent: true,
				}
			}
		}
		r.logger.Warn("skill completed but no note path found",
			logging.Duration("duration", duration),
		)
		return Result{
			Error:  "skill completed but no note path found in output",
			Stdout: execResult.Stdout,
			Stderr: execResult.Stderr,
		}
	}

	if _, err := os.Stat(notePath); err != nil {
		r.logger.Warn("note path not found on disk",
			logging.String("path", notePath),
			logging.Duration("duration", duration),
		)
		return Result{
			Error:  fmt.Sprintf("skill reported creating note but file not found: %s", notePath),
			Stdout: execResult.Stdout,
			Stderr: execResult.Stderr,
		}
	}

	r.logger.Info("note created",
		logging.String("path", filepath.Base(notePath)),
		logging.Duration("duration", duration),
	)
	return Result{
		Success:  true,
		NotePath: notePath,
		Stdout:   execResult.Stdout,
		Stderr:   execResult.Stderr,
	}
}

// RunClip invokes the clip-promotion skill for a captured clip file and
// returns its stdout. Unlike entries, clips have no retry queue; any failure
// surfaces as an error.
func (r *Runner) RunClip(ctx context.Context, clipPath string) (string, error) {
	timeout := time.Duration(r.cfg.Processing.ClipTimeout) * time.Second
	argument := fmt.Sprintf("%q", clipPath)

	start := time.Now()
	execResult, err := r.invoke(ctx, "process-clippings", argument, timeout)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("clip skill timed out after %s", timeout)
		}
		return "", err
	}
	if execResult.ExitCode != 0 {
		errorOutput := strings.TrimSpace(execResult.Stderr)
		if errorOutput == "" {
			errorOutput = strings.TrimSpace(execResult.Stdout)
		}
		return "", fmt.Errorf("clip skill exited with code %d: %s", execResult.ExitCode, truncate(errorOutput, errorExcerptLen))
	}

	r.logger.Debug("clip skill finished", logging.Duration("duration", duration))
	return execResult.Stdout, nil
}

func (r *Runner) invoke(ctx context.Context, skillName, argument string, timeout time.Duration) (ExecResult, error) {
	args := make([]string, 0, 8)
	for _, dir := range r.cfg.PluginDirs() {
		args = append(args, "--plugin-dir", dir)
	}
	if strings.TrimSpace(r.cfg.Tool.MCPConfig) != "" {
		args = append(args, "--mcp-config", r.cfg.Tool.MCPConfig)
	}
	args = append(args,
		"--print",
		"--dangerously-skip-permissions",
		fmt.Sprintf("/pkm:%s %s", skillName, argument),
	)

	env := append(os.Environ(), nestedSessionVar+"=")

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return r.exec.Run(runCtx, r.cfg.Tool.Binary, args, env)
}

func (r *Runner) classifySpawnError(err error, profile Profile, duration time.Duration) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		r.logger.Error("skill timed out",
			logging.Duration("duration", duration),
			logging.Duration("timeout", profile.Timeout),
		)
		return Result{Error: fmt.Sprintf("skill timed out after %d seconds", int(profile.Timeout.Seconds()))}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		r.logger.Error("tool binary not found", logging.String("binary", r.cfg.Tool.Binary))
		return Result{Error: fmt.Sprintf("%s CLI not found. Ensure %q is in PATH.", r.cfg.Tool.Binary, r.cfg.Tool.Binary)}
	}
	r.logger.Error("skill invocation failed", logging.Error(err))
	return Result{Error: fmt.Sprintf("skill invocation failed: %v", err)}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, env []string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
