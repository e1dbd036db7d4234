package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gleaner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.VaultDir = filepath.Join(base, "vault")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Tool.MCPConfig = ""

	if err := os.MkdirAll(cfg.Paths.VaultDir, 0o755); err != nil {
		t.Fatalf("create vault dir: %v", err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}
