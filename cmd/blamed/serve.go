package main

import (
	"github.com/4thel00z/blamed/internal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the blame API over HTTP",
		Long: `Serve POST /api/v1/blame, /healthz and /metrics. Removed mirror directories
are noticed and their known-commit memo is dropped.`,
		Args: cobra.NoArgs,
		RunE: makeServeRunner(a),
	}

	cmd.Flags().String("listen", "", "Listen address (overrides config)")

	return cmd
}

func makeServeRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("listen")
		if addr == "" {
			addr = a.cfg.Listen
		}

		server := internal.NewServer(a.blameUC, a.registry, a.log, a.cfg.RequestTimeout)
		watcher := internal.NewMirrorWatcher(a.cfg.MirrorsDir, a.log, a.syncer.Forget)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			return server.ListenAndServe(ctx, addr)
		})
		g.Go(func() error {
			return watcher.Run(ctx, nil)
		})
		return g.Wait()
	}
}
