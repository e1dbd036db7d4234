package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains vault and working directory configuration.
type Paths struct {
	VaultDir string `toml:"vault_dir"`
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
}

// Tool contains configuration for the external content-processing CLI.
type Tool struct {
	Binary     string   `toml:"binary"`
	PluginDirs []string `toml:"plugin_dirs"`
	MCPConfig  string   `toml:"mcp_config"`
}

// Processing contains per-category invocation settings and run limits.
type Processing struct {
	ArticleTimeout int    `toml:"article_timeout"`
	VideoTimeout   int    `toml:"video_timeout"`
	AudioTimeout   int    `toml:"audio_timeout"`
	ClipTimeout    int    `toml:"clip_timeout"`
	ArticleFolder  string `toml:"article_folder"`
	VideoFolder    string `toml:"video_folder"`
	AudioFolder    string `toml:"audio_folder"`
	ClipsFolder    string `toml:"clips_folder"`
	FetchLimit     int    `toml:"fetch_limit"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the root configuration document.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tool          Tool          `toml:"tool"`
	Processing    Processing    `toml:"processing"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the standard location of the config file.
func DefaultConfigPath() string {
	return "~/.config/gleaner/config.toml"
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. Relative and ~-prefixed paths are expanded.
func Load(path string) (*Config, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if normErr := cfg.normalize(); normErr != nil {
				return nil, normErr
			}
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	resolved, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the pipeline state database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "pipeline.db")
}

// LockPath returns the location of the exclusive run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "gleaner.lock")
}

// LogPath returns the location of the pipeline log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "gleaner.log")
}

// PluginDirs returns the tool plugin directories resolved against the vault.
func (c *Config) PluginDirs() []string {
	dirs := make([]string, 0, len(c.Tool.PluginDirs))
	for _, dir := range c.Tool.PluginDirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		if !filepath.IsAbs(trimmed) {
			trimmed = filepath.Join(c.Paths.VaultDir, trimmed)
		}
		dirs = append(dirs, trimmed)
	}
	return dirs
}

func (c *Config) normalize() error {
	fields := []*string{
		&c.Paths.VaultDir,
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Tool.MCPConfig,
	}
	for _, field := range fields {
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

// ExpandPath resolves ~ prefixes and returns an absolute path. Empty input is
// returned unchanged.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
