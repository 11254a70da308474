package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
	"github.com/naka-gawa/git-line-diffs/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keeps a live status line while the workspace changes",
	Long: `Waits for a git repository to become available, then prints the status
line after every refresh. Refreshes are triggered by file system changes
under the workspace roots, including staging and commits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		if err := a.waitForSource(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("no git repository became available: %w", err)
		}
		a.refreshAndPrint(ctx, out, "startup")

		w, err := a.newWatcher(ctx, func(ctx context.Context) { a.refreshAndPrint(ctx, out, "filesystem") })
		if err != nil {
			return err
		}
		return w.Run(ctx)
	},
}

// newWatcher watches the workspace roots and calls onChange after each
// debounced burst of changes.
func (a *app) newWatcher(ctx context.Context, onChange func(context.Context)) (*watcher.Watcher, error) {
	return watcher.New(a.local.Roots(), watcher.Options{
		Debounce: a.cfg.Watch.Debounce,
		Ignore:   a.cfg.Watch.Ignore,
	}, a.logger, func(events []watcher.Event) {
		if ctx.Err() != nil {
			return
		}
		a.logger.Debug("refresh triggered by file changes", zap.Int("events", len(events)), zap.String("first", events[0].Path))
		onChange(ctx)
	})
}

func (a *app) refreshAndPrint(ctx context.Context, out io.Writer, reason string) {
	snapshot, err := a.coordinator.Refresh(ctx, reason)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.logger.Warn("refresh failed, keeping previous numbers", zap.String("reason", reason), zap.Error(err))
		}
		return
	}
	fmt.Fprintln(out, domain.StatusLine(snapshot))
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
