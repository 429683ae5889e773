// Package server implements the chat server: a TCP accept loop, a
// goroutine-per-connection frame dispatcher, the session registry, and
// the fanout paths for live delivery, roster broadcasts, and offline
// spool drains.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onlinetalk/onlinetalk/internal/logger"
	"github.com/onlinetalk/onlinetalk/pkg/chat/store"
	"github.com/onlinetalk/onlinetalk/pkg/config"
	"github.com/onlinetalk/onlinetalk/pkg/metrics"
	"github.com/onlinetalk/onlinetalk/pkg/protocol"
	"github.com/onlinetalk/onlinetalk/pkg/transfer"
)

// Server accepts client connections and serves the chat protocol.
//
// Shutdown sequence: close the shutdown channel, close the listener,
// interrupt blocking reads so reader goroutines notice, then wait up to
// the configured timeout before force-closing what remains.
type Server struct {
	config    *config.Config
	store     *store.Store
	transfers *transfer.Manager
	metrics   metrics.ChatMetrics
	sessions  *sessionRegistry

	listener      net.Listener
	listenerMu    sync.Mutex
	listenerReady chan struct{}

	shutdown     chan struct{}
	shutdownOnce sync.Once

	// shutdownCtx parents every handler's context; cancelled only after
	// the graceful window expires so in-flight store calls can finish.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to *Connection for shutdown
	// interruption and force-close.
	activeConnections sync.Map
	activeConns       sync.WaitGroup
	connCount         atomic.Int32
	connSemaphore     chan struct{}

	startedAt time.Time
}

// New creates a chat server. The metrics sink may be nil to disable
// instrumentation.
func New(cfg *config.Config, st *store.Store, tm *transfer.Manager, m metrics.ChatMetrics) *Server {
	shutdownCtx, cancelRequests := context.WithCancel(context.Background())
	return &Server{
		config:         cfg,
		store:          st,
		transfers:      tm,
		metrics:        m,
		sessions:       newSessionRegistry(),
		listenerReady:  make(chan struct{}),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
		connSemaphore:  make(chan struct{}, cfg.MaxClients),
		startedAt:      time.Now(),
	}
}

// Serve listens and accepts connections until the context is cancelled
// or Stop is called. Blocks for the lifetime of the listener.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.BindHost, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("chat server listening", "addr", listener.Addr().String(), "max_clients", s.config.MaxClients)

	go func() {
		select {
		case <-ctx.Done():
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	for {
		// Acquire a connection slot before accepting so the backlog, not
		// the server, absorbs load above max_clients.
		select {
		case s.connSemaphore <- struct{}{}:
		case <-s.shutdown:
			return nil
		}

		conn, err := listener.Accept()
		if err != nil {
			<-s.connSemaphore
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			logger.Warn("accept error", "error", err)
			continue
		}

		s.startConnection(conn)
	}
}

func (s *Server) startConnection(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		// Interactive protocol with small frames; Nagle only adds latency.
		tcpConn.SetNoDelay(true)
	}

	c := newConnection(s, conn)
	s.activeConnections.Store(c.remoteAddr, c)
	s.connCount.Add(1)
	if s.metrics != nil {
		s.metrics.RecordConnectionAccepted()
	}
	s.observeGauges()

	s.activeConns.Add(1)
	go func() {
		defer s.activeConns.Done()
		c.serve(s.shutdownCtx)
	}()
}

// releaseConnection undoes startConnection's accounting. Called from
// the connection's teardown.
func (s *Server) releaseConnection(c *Connection) {
	s.activeConnections.Delete(c.remoteAddr)
	s.connCount.Add(-1)
	if s.metrics != nil {
		s.metrics.RecordConnectionClosed()
	}
	<-s.connSemaphore
}

// Stop shuts the server down: stop accepting, nudge readers, wait for
// connections to drain, force-close stragglers after the configured
// timeout (or when ctx expires first). Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("chat server stopped gracefully")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		logger.Warn("shutdown timeout, force closing connections", "timeout", s.config.ShutdownTimeout)
	case <-ctx.Done():
		logger.Warn("shutdown context expired, force closing connections")
	}

	s.forceCloseConnections()
	<-done
	return nil
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.listenerMu.Unlock()

		s.activeConnections.Range(func(_, value any) bool {
			value.(*Connection).interruptRead()
			return true
		})
	})
}

func (s *Server) forceCloseConnections() {
	s.cancelRequests()
	s.activeConnections.Range(func(_, value any) bool {
		value.(*Connection).close()
		if s.metrics != nil {
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})
}

func (s *Server) shuttingDown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// ListenerAddr blocks until the listener is bound and returns its
// address. Useful with port 0 in tests.
func (s *Server) ListenerAddr() net.Addr {
	<-s.listenerReady
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// OnlineUsers implements api.StatusProvider.
func (s *Server) OnlineUsers() int {
	return s.sessions.count()
}

// ActiveConnections implements api.StatusProvider.
func (s *Server) ActiveConnections() int {
	return int(s.connCount.Load())
}

// StartedAt implements api.StatusProvider.
func (s *Server) StartedAt() time.Time {
	return s.startedAt
}

// broadcastUserList pushes the current roster to every logged-in
// connection. Fired after each login and after a logged-in connection
// drops.
func (s *Server) broadcastUserList() {
	meta, err := json.Marshal(map[string]any{"users": s.sessions.onlineUsers()})
	if err != nil {
		logger.Warn("encode user list", "error", err)
		return
	}
	for _, c := range s.sessions.loggedInConns() {
		c.send(&protocol.Packet{Type: protocol.TypeUserListUpdate, Meta: meta})
	}
}

// observeGauges refreshes the connection and presence gauges.
func (s *Server) observeGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetActiveConnections(s.connCount.Load())
	s.metrics.SetOnlineUsers(int32(s.sessions.count()))
}
