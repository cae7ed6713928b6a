package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ledwall/internal/config"
	"github.com/iliyamo/ledwall/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations (or roll back with --down N)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.StoreDriver != config.DriverMySQL {
				return fmt.Errorf("migrate: STORE_DRIVER=%s has no schema", cfg.StoreDriver)
			}
			if down > 0 {
				return database.MigrateDown(cfg.DB, down, log)
			}
			return database.MigrateUp(cfg.DB, log)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}
