package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pmpv/internal/cli"
	apphttp "pmpv/internal/http"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port string
		rpm  int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.Port
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			srv := apphttp.NewServer(":"+port, svc, a.logger, apphttp.Options{
				DefaultConfig:     a.cfg.QuarterDefaults(),
				RequestsPerMinute: rpm,
			})
			srv.ReadTimeout = 30 * time.Second
			srv.WriteTimeout = 60 * time.Second
			srv.IdleTimeout = 60 * time.Second
			srv.MaxHeaderBytes = 1 << 16

			ctx, cancel := cli.SignalContext(cmd.Context(), a.logger)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("Starting pmpv server",
					"port", port,
					"backend", a.cfg.DataBackend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("Server shutdown error", "error", err)
					return err
				}
				a.logger.Info("Server stopped gracefully")
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default from PORT)")
	cmd.Flags().IntVar(&rpm, "rate-limit", 60, "write requests per minute per client")
	return cmd
}
