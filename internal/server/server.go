// Package server wires the HTTP surface: export downloads, token
// issuance, the realtime channel and the operational endpoints.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openfiredata/bdqueimadas/internal/audit"
	"github.com/openfiredata/bdqueimadas/internal/export"
	"github.com/openfiredata/bdqueimadas/internal/health"
	imw "github.com/openfiredata/bdqueimadas/internal/middleware"
	"github.com/openfiredata/bdqueimadas/internal/token"
)

// ExportService runs one export and streams the result.
type ExportService interface {
	Export(ctx context.Context, w io.Writer, req export.Request) error
}

// UpstreamService proxies requests to the upstream fires API.
type UpstreamService interface {
	Request(ctx context.Context, name string, args ...string) (map[string]any, error)
}

type Deps struct {
	Logger   *slog.Logger
	Exporter ExportService
	Guard    token.Guard
	Tokens   token.Store
	Audit    audit.Publisher
	Realtime http.Handler
	Upstream UpstreamService
}

type Server struct {
	deps   Deps
	router chi.Router
}

func New(deps Deps) *Server {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(imw.Recover(deps.Logger))
	r.Use(imw.Logging(deps.Logger))
	r.Use(imw.Metrics())
	r.Use(imw.CORS())

	r.Get("/healthz", health.Liveness())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/export-token", s.handleExportToken)
	r.Get("/export", s.handleExport)
	if deps.Realtime != nil {
		r.Handle("/ws", deps.Realtime)
	}
	if deps.Upstream != nil {
		r.Get("/fires-api/{name}", s.handleUpstream)
	}

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http listen", "addr", addr)
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
