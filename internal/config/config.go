// Package config loads git-line-diffs settings from file, environment and defaults.
package config

import (
	"errors"
	"time"
)

// Default values.
const (
	DefaultCommitLimit         = 50
	DefaultHighImpactThreshold = 500
	DefaultDiffConcurrency     = 8
	DefaultInitialInterval     = 500 * time.Millisecond
	DefaultMaxInterval         = 10 * time.Second
	DefaultWatchEnabled        = true
	DefaultWatchDebounce       = 500 * time.Millisecond
	DefaultServerAddr          = ":7070"
	DefaultGitHubEnabled       = false
)

// DefaultWatchIgnore lists glob patterns never worth a refresh.
var DefaultWatchIgnore = []string{"*.swp", "*~", "*.tmp", "node_modules"}

// Config is the top-level configuration struct.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Roots               []string           `mapstructure:"roots"`
	CommitLimit         int                `mapstructure:"commit_limit"`
	HighImpactThreshold int                `mapstructure:"high_impact_threshold"`
	DiffConcurrency     int                `mapstructure:"diff_concurrency"`
	Availability        AvailabilityConfig `mapstructure:"availability"`
	Watch               WatchConfig        `mapstructure:"watch"`
	Server              ServerConfig       `mapstructure:"server"`
	GitHub              GitHubConfig       `mapstructure:"github"`
}

// AvailabilityConfig controls the wait for the version-control source.
type AvailabilityConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

// WatchConfig controls filesystem-triggered refreshes.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
	Ignore   []string      `mapstructure:"ignore"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	OpenCommand string `mapstructure:"open_command"`
}

// GitHubConfig enables fetching commit logs from GitHub.
type GitHubConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.CommitLimit <= 0 {
		errs = append(errs, errors.New("commit_limit must be positive"))
	}
	if c.HighImpactThreshold <= 0 {
		errs = append(errs, errors.New("high_impact_threshold must be positive"))
	}
	if c.DiffConcurrency < 0 {
		errs = append(errs, errors.New("diff_concurrency must not be negative"))
	}
	if c.Availability.InitialInterval < 0 || c.Availability.MaxInterval < 0 || c.Availability.MaxElapsed < 0 {
		errs = append(errs, errors.New("availability intervals must not be negative"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	if c.GitHub.Enabled && c.GitHub.Token == "" {
		errs = append(errs, errors.New("github.enabled requires github.token or GITHUB_TOKEN"))
	}
	return errors.Join(errs...)
}
