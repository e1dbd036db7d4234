package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Fatalf("output missing target path:\n%s", output)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample missing paths section:\n%s", data)
	}

	// A second init must refuse to clobber the existing file.
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestConfigValidate(t *testing.T) {
	path := writeTestConfig(t)

	output, err := runCommand(t, "--config", path, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(output, "Configuration OK") {
		t.Fatalf("unexpected output:\n%s", output)
	}
}
