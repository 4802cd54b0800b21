package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docutag/mathwiki/metrics"
)

var flagMetricsAddr string

// addMetricsFlag lets a batch command expose its collectors for the length
// of the run
func addMetricsFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", getEnv("METRICS_ADDR", ""), "Serve Prometheus metrics on this address while the command runs")
}

// startMetrics returns nil metrics when --metrics-addr is unset. The returned
// stop function shuts the listener down and is always safe to call.
func startMetrics(logger *zap.Logger) (*metrics.Metrics, func()) {
	if flagMetricsAddr == "" {
		return nil, func() {}
	}

	m := metrics.New(nil)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	server := &http.Server{
		Addr:              flagMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", flagMetricsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
