package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docutag/mathwiki/api"
	"github.com/docutag/mathwiki/metrics"
)

var (
	flagAddr        string
	flagDisableCORS bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stored records over a read-only HTTP API",
	Example: `  mathwiki serve --addr :8080
  PORT=9000 mathwiki serve --store postgres`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":"+getEnv("PORT", "8080"), "Server address")
	serveCmd.Flags().BoolVar(&flagDisableCORS, "disable-cors", false, "Disable CORS headers")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(ctx, logger)
	if err != nil {
		return err
	}

	config := api.Config{
		Addr:        flagAddr,
		CORSEnabled: !flagDisableCORS,
	}
	server, err := api.NewServer(config, st, logger, metrics.New(prometheus.DefaultRegisterer))
	if err != nil {
		st.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			st.Close()
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
