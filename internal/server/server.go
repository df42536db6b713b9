// Package server runs the gateway's HTTP listener.
//
// The server owns the liveness and readiness endpoints. Readiness reports
// not ready as soon as shutdown begins, while in-flight requests drain.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/config"
	"github.com/JaimeStill/doc-gateway/pkg/lifecycle"
)

// Server serves the gateway handler and its probes.
type Server struct {
	http            *http.Server
	ready           lifecycle.ReadinessChecker
	draining        atomic.Bool
	listener        net.Listener
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New mounts /healthz and /readyz ahead of handler. Probe requests bypass
// the handler's middleware. ready decides the readiness answer until the
// server starts draining.
func New(cfg *config.ServerConfig, handler http.Handler, ready lifecycle.ReadinessChecker, logger *slog.Logger) *Server {
	logger = logger.With("system", "server")
	s := &Server{
		ready:           ready,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeoutDuration(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.Handle("/", handler)

	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Ready reports whether the server should receive traffic.
func (s *Server) Ready() bool {
	return !s.draining.Load() && s.ready.Ready()
}

// Start binds the listen address and serves in the background. A bind
// failure is returned directly. Shutdown is registered with lc: the server
// stops reporting ready, then drains within the shutdown timeout.
func (s *Server) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.listener = ln

	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.draining.Store(true)
		s.logger.Info("draining server", "timeout", s.shutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
			return
		}
		s.logger.Info("server shutdown complete")
	})

	return nil
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}
