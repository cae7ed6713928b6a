package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/application"
	"github.com/iliyamo/ledwall/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledwall",
		Short:         "LedWall slot booking backend",
		Long:          `HTTP API for booking 5-minute LedWall slots. Commands: serve, migrate, worker, sweep, hash-password.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := newServeCmd()
	root.RunE = serve.RunE // default: run the API (same as "ledwall serve")
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newMigrateCmd(), newWorkerCmd(), newSweepCmd(), newHashPasswordCmd())
	return root
}

// bootstrap loads the configuration and builds the logger shared by every
// command that talks to the store.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := application.NewLogger(cfg.Development(), cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}
