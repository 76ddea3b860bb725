package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/tessera/pkg/adapters/http"
	"github.com/aretw0/tessera/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves the demo container over a JSON API, with diffs streamed as server-sent events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		hooks := observability.LoggingHooks(logger)
		var handlerOpts []httpAdapter.Option
		handlerOpts = append(handlerOpts, httpAdapter.WithLogger(logger))
		if cfg.Metrics.Enabled {
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m, err := observability.NewMetrics(cfg.Metrics.Namespace, reg)
			if err != nil {
				return err
			}
			hooks = hooks.Merge(m.Hooks())
			handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(reg))
		}

		c, release, err := newContainer(cmd.Context(), cfg, logger, hooks)
		if err != nil {
			return err
		}
		defer release()

		handler, stop, err := httpAdapter.NewHandler(c, handlerOpts...)
		if err != nil {
			return err
		}
		defer stop()

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting Tessera Server", "addr", srv.Addr, "container_id", c.ID())
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("Tessera Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}
