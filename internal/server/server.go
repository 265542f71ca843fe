// Package server exposes the workflow and its projections over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/bidtrail/pkg/workflow"
)

// DefaultShutdownTimeout bounds the graceful shutdown of Run.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server is the HTTP API of one workflow service.
type Server struct {
	svc        *workflow.Service
	logger     *slog.Logger
	cfg        Config
	httpServer *http.Server
}

// New builds the server and its routes. It does not listen.
func New(cfg Config, svc *workflow.Service) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	s := &Server{
		svc:    svc,
		logger: cfg.Logger.With(slog.String("component", "http")),
		cfg:    cfg,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stages", s.listStages)
		r.Get("/keys", s.deriveKey)
		r.Get("/records/{stream}", s.listRecords)

		r.Route("/procurements", func(r chi.Router) {
			r.Get("/", s.listProcurements)
			r.Post("/", s.initiate)
			// Reads address a procurement by stream key, writes by
			// procurement id (the title travels in the body).
			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", s.getProcurement)
				r.Get("/timeline", s.getTimeline)
				r.Get("/documents", s.getDocuments)
				r.Get("/phases", s.getPhases)
				r.Get("/next", s.getNext)
				r.Post("/documents", s.upload)
				r.Post("/advance", s.advance)
				r.Post("/events", s.recordEvent)
			})
		})
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	lifecycle.Go(ctx, func(context.Context) error {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
		return nil
	})

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
