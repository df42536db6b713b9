package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/internal/infrastructure"
	"github.com/JaimeStill/doc-gateway/pkg/logging"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("one or more backends unhealthy")

func newHealthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every backend and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			logger := logging.New(&cfg.Logging)
			coord := coordinator.New(infrastructure.Dialers(cfg, logger), cfg.Sessions, logger)

			ctx := cmd.Context()
			if err := coord.Initialize(ctx); err != nil {
				logger.Warn("initialize failed", "error", err)
			}
			defer coord.Shutdown(context.Background())

			return writeHealth(cmd.OutOrStdout(), coord.IsHealthy(ctx))
		},
	}
}

// writeHealth prints h as JSON and reports errUnhealthy when any store is down.
func writeHealth(w io.Writer, h domain.Health) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(h); err != nil {
		return err
	}
	if !h.Overall {
		return errUnhealthy
	}
	return nil
}
