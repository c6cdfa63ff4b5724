package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chatflow-ai/chatflow/internal/config"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server, and then of the backends.
const ShutdownTimeout = 5 * time.Second

// ServeOptions are the per-invocation settings of the serve command.
type ServeOptions struct {
	// FlowPath, when set, is activated before the server starts.
	FlowPath string
}

// Serve runs the webhook server until ctx is done or the listener fails.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ServeOptions) error {
	app, err := BuildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Error("Failed to close backends", "err", err)
		}
	}()

	if opts.FlowPath != "" {
		if _, err := ActivateFlowFile(ctx, app.Store, opts.FlowPath, logger); err != nil {
			return err
		}
	}

	srv := NewServer(cfg, app.Handler)

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting ChatFlow server", "addr", srv.Addr, "batch_mode", app.Engine.BatchMode())
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("Shutting down", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("ChatFlow server stopped gracefully")
		return nil
	}
}

// NewServer returns an http.Server whose write timeout covers one webhook:
// an AI call followed by a delivery call.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Engine.AITimeout + cfg.Engine.DeliveryTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
