package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mattstruble/portainer-swarm-migrate/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "swarm-migrate",
	Short: "Migrate orphaned Portainer stacks onto a new swarm cluster",
	Long: `swarm-migrate finds stacks that are still bound to a retired swarm
cluster, stops them, and redeploys them onto the configured target cluster
using only the Portainer management API. Per-stack failures are reported,
not fatal, so the run can simply be repeated until everything has moved.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed authentication, unreachable dashboard)
	SilenceUsage: true,
}

// Execute runs the CLI. Exit code 0 means the run completed, even with
// per-stack failures in the report; 2 means bad configuration; 1 means the
// run could not start.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var cfgErr *config.ValidationError
	if errors.As(err, &cfgErr) {
		os.Exit(2)
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configuration.yml", "path to the yaml config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// newLogger builds the process logger and installs it as zap's global.
func newLogger() (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
