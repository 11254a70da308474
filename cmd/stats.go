package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/git-line-diffs/internal/config"
	"github.com/naka-gawa/git-line-diffs/internal/gateway"
	"github.com/naka-gawa/git-line-diffs/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregates uncommitted line changes and prints a report",
	Long: `Runs a single refresh pass over the workspace roots and prints the file,
contributor and commit statistics as a table, JSON or YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		maxFiles, _ := cmd.Flags().GetInt("max-files")
		noColor, _ := cmd.Flags().GetBool("no-color")
		wait, _ := cmd.Flags().GetBool("wait")

		a, err := newApp(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("threshold") {
				cfg.HighImpactThreshold, _ = cmd.Flags().GetInt("threshold")
			}
			if cmd.Flags().Changed("limit") {
				cfg.CommitLimit, _ = cmd.Flags().GetInt("limit")
			}
		})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if wait {
			if err := a.waitForSource(ctx); err != nil {
				return fmt.Errorf("no git repository became available: %w", err)
			}
		}

		snapshot, err := a.coordinator.Refresh(ctx, "cli")
		switch {
		case errors.Is(err, gateway.ErrSourceUnavailable):
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: no git repository found under %v\n", a.local.Roots())
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: interrupted, the report may be incomplete")
		case err != nil:
			a.logger.Error("refresh failed", zap.Error(err))
		}

		model := a.formatter.Format(snapshot)
		return report.Render(cmd.OutOrStdout(), model, format, report.RenderOptions{
			Color:    !noColor && !color.NoColor,
			MaxFiles: maxFiles,
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringP("format", "f", string(report.FormatTable), "Output format: table, json or yaml")
	statsCmd.Flags().Int("threshold", config.DefaultHighImpactThreshold, "Churn above which a file is flagged as high impact")
	statsCmd.Flags().IntP("limit", "n", config.DefaultCommitLimit, "Maximum number of recent commits to summarise")
	statsCmd.Flags().Int("max-files", 0, "Limit the file table to the N busiest files (0 = all)")
	statsCmd.Flags().Bool("no-color", false, "Disable colored table output")
	statsCmd.Flags().Bool("wait", false, "Wait for a git repository to appear under the roots")
}
