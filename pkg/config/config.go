// Package config handles loading and managing Softwatch configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/softwatch/softwatch/pkg/scoring"
)

// Config is the top-level configuration for Softwatch.
type Config struct {
	Scoring   ScoringConfig   `yaml:"scoring"`
	Probe     ProbeConfig     `yaml:"probe"`
	Import    ImportConfig    `yaml:"import"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ScoringConfig controls status derivation.
type ScoringConfig struct {
	// Thresholds selects a built-in status table: "default" or "strict".
	Thresholds string `yaml:"thresholds"`
	// CustomThresholds, when set, replaces the built-in table.
	CustomThresholds []scoring.Threshold `yaml:"custom_thresholds"`
}

// ProbeConfig sets probe timeouts in seconds.
type ProbeConfig struct {
	WebsiteTimeout int `yaml:"website_timeout"`
	APITimeout     int `yaml:"api_timeout"`
	LiveURLTimeout int `yaml:"live_url_timeout"`
}

// ImportConfig controls repository import and auto-detection.
type ImportConfig struct {
	GitHubBaseURL       string   `yaml:"github_base_url"`
	GitLabBaseURL       string   `yaml:"gitlab_base_url"`
	PageSize            int      `yaml:"page_size"`
	AutoDetectLimit     int      `yaml:"auto_detect_limit"`
	AutoDetectLanguages []string `yaml:"auto_detect_languages"`
}

// SchedulerConfig controls periodic re-analysis.
type SchedulerConfig struct {
	Schedule    string `yaml:"schedule"` // cron expression
	Concurrency int    `yaml:"concurrency"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Thresholds: "default",
		},
		Probe: ProbeConfig{
			WebsiteTimeout: 10,
			APITimeout:     8,
			LiveURLTimeout: 8,
		},
		Import: ImportConfig{
			PageSize:        100,
			AutoDetectLimit: 8,
			AutoDetectLanguages: []string{
				"JavaScript", "TypeScript", "Python", "Java", "Go", "Swift", "C#", "C++",
			},
		},
		Scheduler: SchedulerConfig{
			Schedule:    "0 */6 * * *",
			Concurrency: 4,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if _, err := cfg.StatusThresholds(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// StatusThresholds resolves the configured status table.
func (c *Config) StatusThresholds() (scoring.Thresholds, error) {
	if len(c.Scoring.CustomThresholds) > 0 {
		ts := scoring.Thresholds(c.Scoring.CustomThresholds)
		if err := ts.Validate(); err != nil {
			return nil, fmt.Errorf("invalid custom_thresholds: %w", err)
		}
		return ts, nil
	}
	switch c.Scoring.Thresholds {
	case "", "default":
		return scoring.DefaultThresholds(), nil
	case "strict":
		return scoring.StrictThresholds(), nil
	default:
		return nil, fmt.Errorf("unknown thresholds table %q (want default or strict)", c.Scoring.Thresholds)
	}
}

// Timeouts converts the probe section to engine timeouts. Non-positive
// values fall back to the defaults.
func (c *Config) Timeouts() scoring.Timeouts {
	t := scoring.DefaultTimeouts()
	if c.Probe.WebsiteTimeout > 0 {
		t.Website = time.Duration(c.Probe.WebsiteTimeout) * time.Second
	}
	if c.Probe.APITimeout > 0 {
		t.API = time.Duration(c.Probe.APITimeout) * time.Second
	}
	if c.Probe.LiveURLTimeout > 0 {
		t.LiveURL = time.Duration(c.Probe.LiveURLTimeout) * time.Second
	}
	return t
}

// EngineOptions returns the scoring options this config implies.
func (c *Config) EngineOptions() ([]scoring.Option, error) {
	ts, err := c.StatusThresholds()
	if err != nil {
		return nil, err
	}
	return []scoring.Option{
		scoring.WithThresholds(ts),
		scoring.WithTimeouts(c.Timeouts()),
	}, nil
}

// FindConfigFile looks for .softwatch/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".softwatch", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns ~/.cache/softwatch, falling back to the temp dir when
// HOME is not available.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "softwatch")
}

// ReportDir returns the local analysis report directory.
func ReportDir() string {
	return filepath.Join(CacheDir(), "reports")
}
