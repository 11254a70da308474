package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/git-line-diffs/internal/config"
	"github.com/naka-gawa/git-line-diffs/internal/server"
	"github.com/naka-gawa/git-line-diffs/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the aggregated statistics over HTTP",
	Long: `Starts an HTTP server exposing the status line, the raw snapshot, the
formatted report, on-demand refreshes, file open requests and prometheus
metrics. The workspace is also watched when watch.enabled is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
		})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		router := server.NewRouter(server.RouterConfig{
			Refresher: a.coordinator,
			Formatter: a.formatter,
			Root:      a.local.Roots()[0],
			Opener:    server.ExecOpener(a.cfg.Server.OpenCommand),
			Gatherer:  a.registry,
			Logger:    a.logger,
		})

		g, ctx := errgroup.WithContext(ctx)
		var w *watcher.Watcher
		if a.cfg.Watch.Enabled {
			w, err = a.newWatcher(ctx, func(ctx context.Context) {
				if _, err := a.coordinator.Refresh(ctx, "filesystem"); err != nil && ctx.Err() == nil {
					a.logger.Warn("refresh failed, keeping previous numbers", zap.Error(err))
				}
			})
			if err != nil {
				return err
			}
		}

		g.Go(func() error {
			return server.Run(ctx, a.cfg.Server.Addr, router, a.logger)
		})
		g.Go(func() error {
			if err := a.waitForSource(ctx); err != nil {
				if ctx.Err() == nil {
					a.logger.Error("no git repository became available", zap.Error(err))
				}
				return nil
			}
			a.refreshAndPrint(ctx, cmd.OutOrStdout(), "startup")
			return nil
		})
		if w != nil {
			g.Go(func() error { return w.Run(ctx) })
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", config.DefaultServerAddr, "Listen address")
}
