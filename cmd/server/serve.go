package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/ledwall/internal/application"
)

func newServeCmd() *cobra.Command {
	var opts application.Options
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the expiry sweeper and the notification dispatcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			api, err := application.NewAPI(cfg, log, opts)
			if err != nil {
				return err
			}
			return api.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply schema migrations before serving")
	cmd.Flags().BoolVar(&opts.WithWorker, "with-worker", false, "consume the notification queue in-process (amqp transport)")
	return cmd
}
