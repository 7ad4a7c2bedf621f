package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/static-dev/contentful/internal/constants"
	"github.com/static-dev/contentful/internal/metrics"
	"golang.org/x/sync/errgroup"
)

func (a *App) installWatch() error {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever a template changes",
		Long: `Run a build cycle, then a new one whenever a template directory or a watched path changes.

The content is only fetched on the first cycle, unless --aggressive-refresh is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch()
		},
	}

	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this host:port")
	cmd.Flags().Duration("debounce", constants.DefaultDebounce, "delay between a change and the rebuild it triggers")
	cmd.Flags().StringSlice("watch-path", nil, "extra file or directory to watch")

	if err := a.viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	a.cmd.AddCommand(cmd)
	return nil
}

func (a *App) watch() error {
	reg := prometheus.NewRegistry()
	b, err := a.newBuilder(reg)
	if err != nil {
		a.setReady()
		return err
	}

	g, ctx := errgroup.WithContext(a.ctx)
	g.Go(func() error {
		return b.Watch(ctx)
	})
	if a.config.MetricsAddr != "" {
		server := metrics.New(metrics.Config{Addr: a.config.MetricsAddr}, reg)
		g.Go(func() error {
			return server.Serve(ctx)
		})
	}
	a.setReady()

	err = g.Wait()
	if errors.Is(err, context.Canceled) && a.ctx.Err() != nil {
		slog.Info("Stopped watching")
		return nil
	}
	return err
}
