package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".git-line-diffs"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix.
const envPrefix = "GITLINEDIFFS"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	// The token may also come from the conventional GitHub variable.
	if err := viperCfg.BindEnv("github.token", envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("roots", []string{})
	viperCfg.SetDefault("commit_limit", DefaultCommitLimit)
	viperCfg.SetDefault("high_impact_threshold", DefaultHighImpactThreshold)
	viperCfg.SetDefault("diff_concurrency", DefaultDiffConcurrency)

	viperCfg.SetDefault("availability.initial_interval", DefaultInitialInterval)
	viperCfg.SetDefault("availability.max_interval", DefaultMaxInterval)
	viperCfg.SetDefault("availability.max_elapsed", 0)

	viperCfg.SetDefault("watch.enabled", DefaultWatchEnabled)
	viperCfg.SetDefault("watch.debounce", DefaultWatchDebounce)
	viperCfg.SetDefault("watch.ignore", DefaultWatchIgnore)

	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.open_command", "")

	viperCfg.SetDefault("github.enabled", DefaultGitHubEnabled)
	viperCfg.SetDefault("github.token", "")
}
