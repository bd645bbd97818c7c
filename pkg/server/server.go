// Package server exposes the engine over HTTP: scan lifecycle, findings
// queries, and tenant rule management.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cloudvigil/cloudvigil/pkg/collect"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
	"github.com/cloudvigil/cloudvigil/pkg/scan"
)

// CollectorFactory builds the collector set for an account when a scan
// is requested. Injected so the API stays provider-agnostic.
type CollectorFactory func(ctx context.Context, account scan.CloudAccount) ([]collect.Collector, error)

// Dependencies carries everything the API serves.
type Dependencies struct {
	Orchestrator  *scan.Orchestrator
	Findings      *findings.Store
	Rules         *rules.Store
	NewCollectors CollectorFactory
}

// Config tunes the listener.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// WebAPI is the HTTP front end.
type WebAPI struct {
	router *chi.Mux
	logger *slog.Logger
	server *http.Server
	config Config
}

func NewWebAPI(logger *slog.Logger, cfg Config, deps Dependencies) *WebAPI {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{deps: deps, logger: logger}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts/{account}/scans", h.startScan)
		r.Get("/scans/{run}", h.scanProgress)
		r.Delete("/scans/{run}", h.cancelScan)
		r.Get("/accounts/{account}/findings", h.listFindings)
		r.Get("/accounts/{account}/export", h.exportFindings)
		r.Get("/tenants/{tenant}/rules/{family}", h.getRule)
		r.Put("/tenants/{tenant}/rules/{family}", h.putRule)
		r.Delete("/tenants/{tenant}/rules/{family}", h.resetRule)
	})

	return &WebAPI{
		router: router,
		logger: logger,
		config: cfg,
		server: &http.Server{Addr: cfg.Addr, Handler: router},
	}
}

// Router exposes the mux for tests.
func (w *WebAPI) Router() http.Handler { return w.router }

// Start serves until an error or a termination signal, then drains.
func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info("starting server", "addr", w.server.Addr)
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info("shutdown initiated")

		timeout := w.config.ShutdownTimeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := w.server.Shutdown(ctx); err != nil {
			w.logger.Error("graceful shutdown failed", "error", err)
			return w.server.Close()
		}
	}
	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}
