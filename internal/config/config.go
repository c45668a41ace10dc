// Package config provides centralized configuration management for the
// patch workflow: environment variables with the PATCHCTL prefix layered
// over an optional $HOME/.patchctl.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/labops/patchctl/internal/dedup"
)

// Config holds all configuration parameters for the application.
type Config struct {
	// RepoPath is the working repository. Defaults to the current
	// directory.
	RepoPath string

	// BaseBranch is the publish target branch.
	BaseBranch string

	GitHub  GitHubConfig
	Dedup   dedup.Config
	Retry   RetryConfig
	Monitor MonitorConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token      string
	Repository string // "owner/repo"

	// Domain selects a GitHub Enterprise host. Empty means github.com.
	Domain string

	RequestsPerSecond float64
}

// RetryConfig bounds retries of external calls.
type RetryConfig struct {
	Attempts int
	Interval time.Duration
}

// MonitorConfig tunes the background review monitor.
type MonitorConfig struct {
	Interval time.Duration

	// Deadline bounds a monitor session; zero means unbounded.
	Deadline time.Duration
}

// Load reads configuration from the environment and the optional
// config file, applying defaults for everything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PATCHCTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	v.SetConfigName(".patchctl")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		RepoPath:   v.GetString("repo_path"),
		BaseBranch: v.GetString("base_branch"),
		GitHub: GitHubConfig{
			Token:             v.GetString("github.token"),
			Repository:        v.GetString("github.repository"),
			Domain:            v.GetString("github.domain"),
			RequestsPerSecond: v.GetFloat64("github.requests_per_second"),
		},
		Dedup: dedup.Config{
			SummaryUpdateWindow:   v.GetDuration("dedup.summary_update_window"),
			CategoryUpdateWindow:  v.GetDuration("dedup.category_update_window"),
			SummaryLookback:       v.GetDuration("dedup.summary_lookback"),
			MaxSummaryDuplicates:  v.GetInt("dedup.max_summary_duplicates"),
			SimilarThreshold:      v.GetFloat64("dedup.similar_threshold"),
			CategoryKeywordWeight: v.GetFloat64("dedup.category_keyword_weight"),
			GenericKeywordWeight:  v.GetFloat64("dedup.generic_keyword_weight"),
			ExactCategoryWeight:   v.GetFloat64("dedup.exact_category_weight"),
			Recent24hWeight:       v.GetFloat64("dedup.recent_24h_weight"),
			Recent7dWeight:        v.GetFloat64("dedup.recent_7d_weight"),
			SummaryMarker:         v.GetString("dedup.summary_marker"),
			TrackingLabel:         v.GetString("dedup.tracking_label"),
		},
		Retry: RetryConfig{
			Attempts: v.GetInt("retry.attempts"),
			Interval: v.GetDuration("retry.interval"),
		},
		Monitor: MonitorConfig{
			Interval: v.GetDuration("monitor.interval"),
			Deadline: v.GetDuration("monitor.deadline"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("repo_path", ".")
	v.SetDefault("base_branch", "main")
	v.SetDefault("github.requests_per_second", 5.0)

	d := dedup.DefaultConfig()
	v.SetDefault("dedup.summary_update_window", d.SummaryUpdateWindow)
	v.SetDefault("dedup.category_update_window", d.CategoryUpdateWindow)
	v.SetDefault("dedup.summary_lookback", d.SummaryLookback)
	v.SetDefault("dedup.max_summary_duplicates", d.MaxSummaryDuplicates)
	v.SetDefault("dedup.similar_threshold", d.SimilarThreshold)
	v.SetDefault("dedup.category_keyword_weight", d.CategoryKeywordWeight)
	v.SetDefault("dedup.generic_keyword_weight", d.GenericKeywordWeight)
	v.SetDefault("dedup.exact_category_weight", d.ExactCategoryWeight)
	v.SetDefault("dedup.recent_24h_weight", d.Recent24hWeight)
	v.SetDefault("dedup.recent_7d_weight", d.Recent7dWeight)
	v.SetDefault("dedup.summary_marker", d.SummaryMarker)
	v.SetDefault("dedup.tracking_label", d.TrackingLabel)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.interval", 2*time.Second)

	v.SetDefault("monitor.interval", time.Minute)
	v.SetDefault("monitor.deadline", time.Duration(0))
}

// Validate checks the loaded values. The GitHub token is validated only
// by commands that need the tracker, so it is not required here.
func (c *Config) Validate() error {
	if c.RepoPath == "" {
		return fmt.Errorf("repo_path must not be empty")
	}
	if c.BaseBranch == "" {
		return fmt.Errorf("base_branch must not be empty")
	}
	if c.GitHub.Repository != "" && len(strings.Split(c.GitHub.Repository, "/")) != 2 {
		return fmt.Errorf("github.repository must be in owner/repo format, got %q", c.GitHub.Repository)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if c.Retry.Interval <= 0 {
		return fmt.Errorf("retry.interval must be positive")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if c.Monitor.Deadline < 0 {
		return fmt.Errorf("monitor.deadline must not be negative")
	}
	if err := c.Dedup.Validate(); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	return nil
}

// RequireTracker validates the fields needed to talk to the issue
// tracker.
func (c *Config) RequireTracker() error {
	var missing []string
	if c.GitHub.Token == "" {
		missing = append(missing, "PATCHCTL_GITHUB_TOKEN")
	}
	if c.GitHub.Repository == "" {
		missing = append(missing, "PATCHCTL_GITHUB_REPOSITORY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}
