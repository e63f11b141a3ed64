// Package web serves the mood selector page and its form actions.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/genricoloni/moodflix/internal/domain"
	"go.uber.org/zap"
)

// Server owns the HTTP listener and the session store behind it
type Server struct {
	logger   *zap.Logger
	addr     string
	srv      *http.Server
	sessions *SessionStore
	ln       net.Listener
}

// NewServer creates a server for handler bound to the configured address
func NewServer(logger *zap.Logger, cfg domain.Config, handler http.Handler, sessions *SessionStore) *Server {
	return &Server{
		logger:   logger,
		addr:     cfg.GetListenAddr(),
		sessions: sessions,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start binds the listener and serves in a goroutine.
// It returns immediately (non-blocking).
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln

	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop drains open connections, then drops sessions and their in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server stopping...")

	err := s.srv.Shutdown(ctx)
	s.sessions.Close()

	if err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
