package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/caseconf"
	httpAdapter "github.com/aretw0/caseconf/internal/adapters/http"
	"github.com/aretw0/caseconf/internal/cli"
	"github.com/aretw0/caseconf/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves sessions of the blueprint over a JSON API, streams their changes as
server-sent events and exposes Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := optionsFrom(cmd)
		port, _ := cmd.Flags().GetInt("port")

		logger, err := cli.NewLogger(opts)
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics()
		if err := metrics.Register(registry); err != nil {
			return err
		}

		engine, cleanup, err := cli.NewEngine(opts, logger, caseconf.WithMetrics(metrics))
		if err != nil {
			return err
		}
		defer cleanup()

		handler := httpAdapter.NewHandler(engine.Manager(),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithVersion(caseconf.Version),
			httpAdapter.WithMetrics(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Starting caseconf server on %s (blueprint %s)\n", srv.Addr, engine.Name)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			fmt.Fprintf(cmd.ErrOrStderr(), "\nStart shutdown... Signal: %v\n", ctx.Signal())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "caseconf server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
}
