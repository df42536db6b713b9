package main

import (
	"context"
	"fmt"

	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/infrastructure"
	"github.com/JaimeStill/doc-gateway/internal/sweeper"
	"github.com/JaimeStill/doc-gateway/pkg/logging"
	"github.com/spf13/cobra"
)

func newSweepCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue sessions expired once and exit",
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
				return err
			}
			defer coord.Shutdown(context.Background())

			sw, err := sweeper.New(coord, sweeper.Disabled, 0, logger)
			if err != nil {
				return err
			}

			n, err := sw.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d session(s)\n", n)
			return nil
		},
	}
}
