// Package server assembles the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/config"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/health"
	middleware "github.com/mohammed-shakir/pluscode-grid/internal/core/middleware"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/router"
)

type Deps struct {
	API *router.Handler
	// Ready lists the dependencies /readyz pings.
	Ready map[string]health.Pinger
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewHandler builds the route tree.
func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORSAllowOrigin))
	r.Use(chimw.Compress(5, "application/json", "text/plain"))

	r.NotFound(fallback(cfg.Redirects, http.StatusNotFound))
	r.MethodNotAllowed(fallback(cfg.Redirects, http.StatusMethodNotAllowed))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, d.Ready))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/", d.API.Location())
	r.Post("/", d.API.Location())
	r.Get("/map", d.API.Map())
	r.Post("/map", d.API.Map())
	return r
}

// fallback redirects to the configured error page for status, or answers with
// the JSON error envelope.
func fallback(redirects map[int]string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if u, ok := redirects[status]; ok {
			http.Redirect(w, r, u, http.StatusFound)
			return
		}
		router.WriteError(w, status, http.StatusText(status))
	}
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
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
