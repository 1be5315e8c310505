package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/DaylightLtd/minidex/pkg/httputil"
	"github.com/DaylightLtd/minidex/pkg/observability"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps the HTTP server and router for the auth API.
type Server struct {
	router *mux.Router
	srv    *http.Server
	log    *observability.Logger
}

// NewServer builds the router, applies the common middleware chain and
// returns a server ready to listen on cfg.Addr.
func NewServer(cfg ServerConfig, log *observability.Logger) *Server {
	if log == nil {
		log = observability.NewNopLogger()
	}

	router := mux.NewRouter()
	handler := httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware,
	)(router)

	return &Server{
		router: router,
		log:    log,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Router exposes the underlying router for route registration.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving. It blocks until the server stops and returns nil on
// graceful shutdown.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
