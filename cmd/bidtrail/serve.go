package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/bidtrail/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the workflow and its projections over HTTP under /api/v1, with
/healthz and Prometheus metrics on /metrics. SIGINT or SIGTERM shuts the
server down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := a.engine(ctx, false)
			if err != nil {
				return err
			}
			defer engine.Close()

			srv := server.New(server.Config{
				Addr:            a.cfg.HTTP.Addr,
				ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
				Logger:          a.logger,
			}, engine.Workflow)
			a.logger.Info("serving", "addr", a.cfg.HTTP.Addr, "ledger", engine.Location())
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	_ = a.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
