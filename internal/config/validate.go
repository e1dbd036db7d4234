package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.VaultDir) == "" {
		problems = append(problems, "paths.vault_dir is required")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if strings.TrimSpace(c.Tool.Binary) == "" {
		problems = append(problems, "tool.binary is required")
	}
	if len(c.PluginDirs()) == 0 {
		problems = append(problems, "tool.plugin_dirs must list at least one directory")
	}

	timeouts := map[string]int{
		"processing.article_timeout": c.Processing.ArticleTimeout,
		"processing.video_timeout":   c.Processing.VideoTimeout,
		"processing.audio_timeout":   c.Processing.AudioTimeout,
		"processing.clip_timeout":    c.Processing.ClipTimeout,
	}
	for key, value := range timeouts {
		if value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", key))
		}
	}
	if c.Processing.FetchLimit < 0 {
		problems = append(problems, "processing.fetch_limit must not be negative")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console or json)", c.Logging.Format))
	}
	if c.Logging.RetentionDays < 0 {
		problems = append(problems, "logging.retention_days must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
