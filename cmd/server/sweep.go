package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ledwall/internal/application"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Release abandoned reservations once (for cron)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			n, err := application.Sweep(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %d reservations\n", n)
			return nil
		},
	}
}
