// Package api exposes the conversation service over HTTP.
//
// Endpoints:
//
//	POST /api/chat                     ask a question within a session
//	GET  /api/sessions                 list sessions
//	GET  /api/sessions/{id}/turns      read a session's turn history
//	GET  /health                       liveness probe
//	GET  /ready                        readiness probe (pings the database)
//	GET  /                             embedded browser UI
//
// File structure follows one handler type per file, with JSON helpers in
// response.go and middleware in middleware.go.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cvswarm/cvswarm/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to keep slow clients from
	// pinning connections.
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 120 * time.Second
	IdleTimeout       = 120 * time.Second
)

// Server is the HTTP server for the REST API and the embedded UI.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a server with all routes registered. ui may be nil to
// run API-only.
func NewServer(chat *ChatHandler, sessions *SessionHandler, health *HealthHandler, ui http.Handler, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()
	chat.RegisterRoutes(mux)
	sessions.RegisterRoutes(mux)
	health.RegisterRoutes(mux)
	if ui != nil {
		mux.Handle("GET /", ui)
	}
	return &Server{mux: mux, logger: logger}
}

// Handler returns the HTTP handler with middleware applied. Recovery wraps
// logging so panics in either still produce a response.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
