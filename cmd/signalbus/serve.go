package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/growthkit/signalbus"
	"github.com/growthkit/signalbus/internal/logging"
	httpadapter "github.com/growthkit/signalbus/pkg/adapters/http"
	"github.com/growthkit/signalbus/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ops HTTP endpoint",
	Long:  `Starts the bus with the configured stores and exposes metrics, health and per-tenant inspection over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Ops.Listen = listen
		}
		if cfg.Ops.Listen == "" {
			cfg.Ops.Listen = ":9402"
		}

		logger := logging.NewJSON(slog.LevelInfo)
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics("signalbus", registry)

		bus, err := signalbus.New(cfg,
			signalbus.WithLogger(logger),
			signalbus.WithMetrics(metrics),
		)
		if err != nil {
			fmt.Printf("Error initializing bus: %v\n", err)
			os.Exit(1)
		}
		defer bus.Close()

		handler := httpadapter.NewHandler(httpadapter.Server{
			Breaker:       bus.Breaker(),
			Throttler:     bus.Throttler(),
			Audit:         bus.Audit(),
			Subscriptions: bus.Subscriptions(),
			Gatherer:      registry,
		})

		srv := &http.Server{
			Addr:    cfg.Ops.Listen,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("ops endpoint listening", "addr", srv.Addr, "environment", cfg.Environment)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "error", err)
				}
			}
			logger.Info("ops endpoint stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address, overrides ops.listen from the config")
}
