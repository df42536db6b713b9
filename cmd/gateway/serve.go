package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JaimeStill/doc-gateway/internal/config"
	"github.com/JaimeStill/doc-gateway/internal/infrastructure"
	"github.com/JaimeStill/doc-gateway/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	svc, err := NewService(cfg)
	if err != nil {
		return fmt.Errorf("service init failed: %w", err)
	}

	if err := svc.Start(); err != nil {
		return fmt.Errorf("service start failed: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	if err := svc.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	svc.infra.Logger.Info("service stopped gracefully")
	return nil
}

// Service binds the HTTP server to the shared infrastructure.
type Service struct {
	infra  *infrastructure.Infrastructure
	server *server.Server
}

// NewService builds the handler stack without contacting any backend.
func NewService(cfg *config.Config) (*Service, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	handler := buildHandler(cfg, infra)

	return &Service{
		infra:  infra,
		server: server.New(&cfg.Server, handler, infra, infra.Logger),
	}, nil
}

// Start launches every subsystem and blocks until startup hooks return.
func (s *Service) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.server.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("service started", "addr", s.server.Addr(), "coordinator", s.infra.Coordinator.State().String())
	}()
	return nil
}

// Shutdown stops every subsystem within timeout.
func (s *Service) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
