package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file (and parent directories) with contents for tests.
func WriteFile(t testing.TB, path, contents string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
