package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/plot-editor/internal/core/config"
	"github.com/mohammed-shakir/plot-editor/internal/core/health"
	middleware "github.com/mohammed-shakir/plot-editor/internal/core/middleware"
	"github.com/mohammed-shakir/plot-editor/internal/core/router"
)

// Handler builds the full route tree: probes, metrics and the editor API.
func Handler(logger *slog.Logger, api *router.API, checks map[string]health.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(checks, 2*time.Second))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	api.Routes(r)
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, api *router.API, checks map[string]health.Check) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(logger, api, checks),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
