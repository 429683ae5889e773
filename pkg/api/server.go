// Package api provides the optional HTTP status server for the chat
// server: liveness and readiness probes plus a small JSON status
// document (online users, connection count, uptime).
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/onlinetalk/onlinetalk/internal/logger"
)

// StatusProvider reports live chat-server state to the status endpoint.
// The chat server implements this; tests use a stub.
type StatusProvider interface {
	// OnlineUsers returns the number of logged-in users.
	OnlineUsers() int

	// ActiveConnections returns the number of open client connections,
	// logged in or not.
	ActiveConnections() int

	// StartedAt returns when the chat listener came up.
	StartedAt() time.Time
}

// Server provides the status HTTP server.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - GET /api/v1/status: Online users, connections, uptime
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	status       StatusProvider
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new status HTTP server.
//
// The server is created in a stopped state. Call Start() to begin
// serving requests.
func NewServer(config Config, status StatusProvider) *Server {
	config.applyDefaults()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      NewRouter(status),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		status: status,
		config: config,
	}
}

// Start starts the status HTTP server and blocks until the context is
// cancelled or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil; a listen failure is returned as an error.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("status server shutdown signal received")
		// Fresh context: the cancelled ctx would abort the drain immediately
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("status server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the status server.
//
// Stop is safe to call multiple times and concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("status server shutdown error: %w", err)
			logger.Error("status server shutdown error", "error", err)
		} else {
			logger.Info("status server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
