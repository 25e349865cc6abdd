package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/latency-space/porkchop/internal/server"
)

// shutdownGrace bounds how long in-flight requests may run after a signal.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long: `
Serve the porkchop API:

  GET  /api/bodies     known body names
  GET  /api/porkchop   grid from query parameters
  POST /api/porkchop   grid from a JSON request
  GET  /ws/porkchop    grid rows streamed over a WebSocket
  GET  /healthz        liveness

Prometheus metrics are served on server.metricsAddr at /metrics.
`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	builder := newBuilder(cfg, reg, logger)
	srv := server.NewServer(cfg.Server, builder, server.NewMetricsCollector(reg), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		return err
	}
	logger.Info("Service started",
		"addr", cfg.Server.Addr, "metrics", cfg.Server.MetricsAddr,
		"source", cfg.Ephemeris.Source, "tls", cfg.Server.TLS.Enabled)

	<-ctx.Done()
	logger.Info("Shutting down servers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
