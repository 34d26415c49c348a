// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package httpapi exposes the auth flows over HTTP. The handlers are
// thin: they decode requests, call into the auth core, and map typed
// failures to status codes without leaking internal error text.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/keyfold/keyfold/internal/auth"
)

// Server serves the public auth API.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool

	service  *auth.Service
	resets   *auth.PasswordResetService
	resolver *auth.SessionResolver
	users    auth.UserRepository
	logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(addr string, service *auth.Service, resets *auth.PasswordResetService, resolver *auth.SessionResolver, users auth.UserRepository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		service:  service,
		resets:   resets,
		resolver: resolver,
		users:    users,
		logger:   logger,
	}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("POST /api/auth/reset/request", s.handleResetRequest)
	mux.HandleFunc("POST /api/auth/reset/confirm", s.handleResetConfirm)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start begins serving the API. It returns an error channel that
// receives any server failure after startup; the channel closes when
// the server stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or empty if not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
