// Package server runs the tutorhub HTTP API with graceful startup and shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Server wraps http.Server with configured timeouts and a context-driven lifecycle.
type Server struct {
	handler http.Handler
	logger  logger.Logger
	config  config.HTTPConfig

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	ready      chan struct{}
}

// New creates a Server serving handler. Port 0 picks a free port, see Addr.
func New(cfg config.HTTPConfig, handler http.Handler, log logger.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		handler: handler,
		logger:  log,
		config:  cfg,
		ready:   make(chan struct{}),
	}
}

// Start listens and serves until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	httpServer := s.httpServer
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("starting server", "addr", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits up to the configured shutdown
// timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	addr := s.Addr()
	s.logger.Info("shutting down server", "addr", addr, "timeout", s.config.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server shutdown complete", "addr", addr)
	return nil
}
