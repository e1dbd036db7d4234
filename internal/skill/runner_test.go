package skill

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"gleaner/internal/config"
	"gleaner/internal/store"
	"gleaner/internal/testsupport"
)

type fakeExecutor struct {
	result ExecResult
	err    error

	binary string
	args   []string
	env    []string
	calls  int
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string, env []string) (ExecResult, error) {
	f.binary = binary
	f.args = args
	f.env = env
	f.calls++
	return f.result, f.err
}

func newTestRunner(t *testing.T, cfg *config.Config, executor Executor) *Runner {
	t.Helper()
	runner, err := NewRunner(cfg, nil, WithExecutor(executor))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func writeVaultNote(t *testing.T, cfg *config.Config, relPath string) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.VaultDir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("note"), 0o644); err != nil {
		t.Fatalf("write note: %v", err)
	}
	return path
}

func articleEntry() store.Entry {
	return store.Entry{
		GUID:     "entry-1",
		Title:    "Test Article",
		URL:      "https://example.com/post",
		Category: store.CategoryArticle,
	}
}

func TestRunnerSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	notePath := writeVaultNote(t, cfg, filepath.Join(cfg.Processing.ArticleFolder, "Test Article.md"))

	executor := &fakeExecutor{result: ExecResult{Stdout: "NOTE_PATH: " + notePath}}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.NotePath != notePath {
		t.Fatalf("NotePath = %q, want %q", result.NotePath, notePath)
	}
	if result.Permanent {
		t.Fatal("success must not be permanent")
	}
}

func TestRunnerCommandShape(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tool.MCPConfig = filepath.Join(cfg.Paths.VaultDir, "mcp.json")
	notePath := writeVaultNote(t, cfg, filepath.Join(cfg.Processing.ArticleFolder, "Test Article.md"))

	executor := &fakeExecutor{result: ExecResult{Stdout: "NOTE_PATH: " + notePath}}
	runner := newTestRunner(t, cfg, executor)
	runner.Run(context.Background(), articleEntry())

	if executor.binary != cfg.Tool.Binary {
		t.Fatalf("binary = %q, want %q", executor.binary, cfg.Tool.Binary)
	}

	joined := strings.Join(executor.args, " ")
	for _, dir := range cfg.PluginDirs() {
		if !strings.Contains(joined, "--plugin-dir "+dir) {
			t.Errorf("args missing --plugin-dir %s: %q", dir, joined)
		}
	}
	if !strings.Contains(joined, "--mcp-config "+cfg.Tool.MCPConfig) {
		t.Errorf("args missing --mcp-config: %q", joined)
	}
	for _, flag := range []string{"--print", "--dangerously-skip-permissions"} {
		if !strings.Contains(joined, flag) {
			t.Errorf("args missing %s: %q", flag, joined)
		}
	}
	last := executor.args[len(executor.args)-1]
	if last != "/pkm:article https://example.com/post" {
		t.Errorf("skill argument = %q", last)
	}

	cleared := false
	for _, kv := range executor.env {
		if kv == nestedSessionVar+"=" {
			cleared = true
		}
	}
	if !cleared {
		t.Errorf("env does not clear %s: %v", nestedSessionVar, executor.env)
	}
}

func TestRunnerPaywallIsPermanent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	executor := &fakeExecutor{result: ExecResult{
		Stdout: "This article appears to be behind a paywall. I could only extract the headline.",
	}}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if result.Success {
		t.Fatal("expected failure")
	}
	if !result.Permanent {
		t.Fatal("paywall output with clean exit must be permanent")
	}
	if !strings.Contains(result.Error, "paywall") {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestRunnerNonZeroExitNeverPermanent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	executor := &fakeExecutor{result: ExecResult{
		Stdout:   "subscription required",
		ExitCode: 1,
	}}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Permanent {
		t.Fatal("non-zero exit must stay retryable even with paywall text")
	}
	if !strings.Contains(result.Error, "exited with code 1") {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestRunnerNoPathIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	executor := &fakeExecutor{result: ExecResult{Stdout: "All done!"}}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if result.Success || result.Permanent {
		t.Fatalf("want transient failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "no note path") {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestRunnerFilesystemFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	notePath := writeVaultNote(t, cfg, filepath.Join(cfg.Processing.ArticleFolder, "Fresh.md"))

	executor := &fakeExecutor{result: ExecResult{Stdout: "Note created, enjoy."}}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if !result.Success {
		t.Fatalf("expected fallback success, got error %q", result.Error)
	}
	if result.NotePath != notePath {
		t.Fatalf("NotePath = %q, want %q", result.NotePath, notePath)
	}
}

func TestRunnerReportedPathMissingOnDisk(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	missing := filepath.Join(cfg.Paths.VaultDir, cfg.Processing.ArticleFolder, "Ghost.md")

	executor := &fakeExecutor{result: ExecResult{Stdout: "NOTE_PATH: " + missing}}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if result.Success || result.Permanent {
		t.Fatalf("want transient failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "file not found") {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestRunnerTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	executor := &fakeExecutor{err: context.DeadlineExceeded}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if result.Success || result.Permanent {
		t.Fatalf("want transient failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestRunnerBinaryMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	executor := &fakeExecutor{err: &exec.Error{Name: cfg.Tool.Binary, Err: exec.ErrNotFound}}
	runner := newTestRunner(t, cfg, executor)

	result := runner.Run(context.Background(), articleEntry())
	if result.Success || result.Permanent {
		t.Fatalf("want transient failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "not found") {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestRunnerRunClip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	executor := &fakeExecutor{result: ExecResult{Stdout: "PROMOTED: yes\nCATEGORY: idea\n"}}
	runner := newTestRunner(t, cfg, executor)

	stdout, err := runner.RunClip(context.Background(), "/vault/Clippings/Unprocessed/clip.md")
	if err != nil {
		t.Fatalf("RunClip: %v", err)
	}
	if !strings.Contains(stdout, "PROMOTED: yes") {
		t.Fatalf("stdout = %q", stdout)
	}
	last := executor.args[len(executor.args)-1]
	if !strings.HasPrefix(last, "/pkm:process-clippings ") {
		t.Fatalf("skill argument = %q", last)
	}

	executor.result = ExecResult{Stderr: "boom", ExitCode: 2}
	if _, err := runner.RunClip(context.Background(), "/vault/clip.md"); err == nil {
		t.Fatal("expected error on non-zero exit")
	}
}

func TestValidateSkills(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := newTestRunner(t, cfg, &fakeExecutor{})

	missing := runner.ValidateSkills()
	if len(missing) != 3 {
		t.Fatalf("missing = %v, want all three skills", missing)
	}

	for _, skillName := range []string{"article", "youtube", "podcast"} {
		dir := filepath.Join(cfg.PluginDirs()[0], "skills", skillName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if missing := runner.ValidateSkills(); len(missing) != 0 {
		t.Fatalf("missing = %v, want none", missing)
	}
}
