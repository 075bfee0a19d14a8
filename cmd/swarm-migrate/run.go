package main

import (
	"github.com/spf13/cobra"

	"github.com/mattstruble/portainer-swarm-migrate/internal/config"
	"github.com/mattstruble/portainer-swarm-migrate/internal/migration"
	"github.com/mattstruble/portainer-swarm-migrate/internal/portainer"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Stop, retarget, and restart every orphaned stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			client := portainer.NewClient(portainer.Options{
				BaseURL:  cfg.URL,
				Username: cfg.Username,
				Password: cfg.Password,
				Insecure: cfg.Insecure,
				Timeout:  cfg.Timeout.Std(),
			})
			if err := client.Authenticate(ctx); err != nil {
				return err
			}

			runner := migration.NewRunner(client, migration.Options{
				TargetClusterID: cfg.ClusterID,
				Workers:         cfg.Workers,
				StopWait:        cfg.StopWait.Std(),
				Logger:          logger,
			})
			report, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			report.WriteSummary(cmd.OutOrStdout())
			// Per-stack failures are in the report; the run itself completed.
			return nil
		},
	}
}
