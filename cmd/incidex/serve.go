package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/incidex/internal/transport/chi"
	"github.com/kailas-cloud/incidex/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, globalCfg, globalEnv)
		if err != nil {
			return err
		}
		defer a.Close()

		a.logger.Info("Starting incidex API server",
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.String("env", globalEnv),
			zap.Int("http_port", a.cfg.HTTP.Port),
		)

		server := chiTransport.NewServer(a.incidents, a.health, a.logger)
		addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      server.Handler(),
			ReadTimeout:  seconds(a.cfg.HTTP.ReadTimeoutSec),
			WriteTimeout: seconds(a.cfg.HTTP.WriteTimeoutSec),
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("Starting HTTP server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(a.cfg.HTTP.ShutdownSec))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Error during shutdown", zap.Error(err))
		}
		a.logger.Info("Server stopped gracefully")
		return nil
	},
}
