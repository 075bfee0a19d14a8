package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattstruble/portainer-swarm-migrate/internal/config"
	"github.com/mattstruble/portainer-swarm-migrate/internal/migration"
	"github.com/mattstruble/portainer-swarm-migrate/internal/portainer"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show which stacks would be migrated, without touching anything",
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
				Logger:          logger,
			})
			inv, err := runner.Discover(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Target cluster %s has %d endpoint(s)\n", cfg.ClusterID, len(inv.TargetEndpoints))
			fmt.Fprintf(out, "%d stack(s) in inventory, %d orphaned\n\n", len(inv.Stacks), len(inv.Orphans))

			for _, o := range inv.Orphans {
				if o.Unresolved {
					fmt.Fprintf(out, "  %-30s would migrate (endpoint %d unresolvable)\n", o.Stack.Name, o.Stack.EndpointID)
				} else {
					fmt.Fprintf(out, "  %-30s would migrate (on cluster %s)\n", o.Stack.Name, o.ClusterID)
				}
			}
			orphaned := make(map[int]bool, len(inv.Orphans))
			for _, o := range inv.Orphans {
				orphaned[o.Stack.ID] = true
			}
			for _, st := range inv.Stacks {
				if !orphaned[st.ID] {
					fmt.Fprintf(out, "  %-30s would skip (already on target cluster)\n", st.Name)
				}
			}
			return nil
		},
	}
}
