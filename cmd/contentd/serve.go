package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/contentops/config"
	"github.com/jonwraymond/contentops/health"
	"github.com/jonwraymond/contentops/observe"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}

	var last health.Status
	unsubscribe := a.monitor.Subscribe(func(s health.Snapshot) {
		if s.Status == last {
			return
		}
		fields := []observe.Field{
			{Key: "status", Value: s.Status.String()},
			{Key: "circuit_state", Value: s.CircuitState.String()},
			{Key: "response_time_ms", Value: s.ResponseTime.Milliseconds()},
		}
		if s.Error != "" {
			fields = append(fields, observe.Field{Key: "error", Value: s.Error})
		}
		if s.Status == health.StatusHealthy {
			a.logger.Info(ctx, "primary source health changed", fields...)
		} else {
			a.logger.Warn(ctx, "primary source health changed", fields...)
		}
		last = s.Status
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "contentd listening", observe.Field{Key: "addr", Value: cfg.Server.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "contentd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	unsubscribe()
	return errors.Join(err, srv.Shutdown(shutdownCtx), a.close(shutdownCtx))
}
