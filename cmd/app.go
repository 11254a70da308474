package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/git-line-diffs/internal/config"
	"github.com/naka-gawa/git-line-diffs/internal/gateway"
	"github.com/naka-gawa/git-line-diffs/internal/logging"
	"github.com/naka-gawa/git-line-diffs/internal/metrics"
	"github.com/naka-gawa/git-line-diffs/internal/report"
	"github.com/naka-gawa/git-line-diffs/internal/usecase"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	local       *gateway.LocalSource
	source      gateway.Source
	coordinator *usecase.Coordinator
	formatter   *report.Formatter
	registry    *prometheus.Registry
}

// newApp loads configuration, applies the root flags and the command's
// overrides, then injects dependencies.
func newApp(cmd *cobra.Command, override func(*config.Config)) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if roots, _ := cmd.Flags().GetStringArray("root"); len(roots) > 0 {
		cfg.Roots = roots
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, err := logging.New(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	local, err := gateway.NewLocalSource(cfg.Roots, logger)
	if err != nil {
		return nil, err
	}
	var source gateway.Source = local
	if cfg.GitHub.Enabled {
		gh, err := gateway.NewGitHubLog(cfg.GitHub.Token, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		source = gateway.WithRemoteLogs(local, gh, logger)
		logger.Debug("commit logs come from GitHub", zap.String("token", logging.Redact(cfg.GitHub.Token)))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &app{
		cfg:    cfg,
		logger: logger,
		local:  local,
		source: source,
		coordinator: usecase.NewCoordinator(source, usecase.NewChangeAggregator(cfg.CommitLimit), logger, usecase.CoordinatorOptions{
			DiffConcurrency: cfg.DiffConcurrency,
			Metrics:         metrics.New(registry),
		}),
		formatter: report.NewFormatter(cfg.HighImpactThreshold),
		registry:  registry,
	}, nil
}

func (a *app) availabilityPolicy() usecase.AvailabilityPolicy {
	return usecase.AvailabilityPolicy{
		InitialInterval: a.cfg.Availability.InitialInterval,
		MaxInterval:     a.cfg.Availability.MaxInterval,
		MaxElapsed:      a.cfg.Availability.MaxElapsed,
	}
}

// waitForSource blocks until a repository can be opened under the roots.
func (a *app) waitForSource(ctx context.Context) error {
	return usecase.WaitForSource(ctx, a.source, a.availabilityPolicy(), func(err error, next time.Duration) {
		a.logger.Warn("waiting for a git repository", zap.Strings("roots", a.local.Roots()), zap.Duration("retry_in", next), zap.Error(err))
	})
}

func (a *app) close() {
	_ = a.logger.Sync()
}
