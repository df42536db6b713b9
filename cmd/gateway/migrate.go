package main

import (
	"github.com/JaimeStill/doc-gateway/internal/relational"
	"github.com/JaimeStill/doc-gateway/pkg/logging"
	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or revert the relational schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{relational.MigrateUp, relational.MigrateDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			direction := relational.MigrateUp
			if len(args) == 1 {
				direction = args[0]
			}

			logger := logging.New(&cfg.Logging).With("system", "migrate")
			return relational.Migrate(&cfg.Database, direction, logger)
		},
	}
}
