// Package cmd defines the CLI commands for the tubescan executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndtworks/tubescan/internal/config"
	"github.com/ndtworks/tubescan/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tubescan",
		Short: "Tube-sheet inspection console engine",
		Long: `tubescan partitions a tube-sheet hole layout into sectors, sequences a
boustrophedon detection path over it, and runs a timed batch simulation that
resolves every hole to a terminal verdict while streaming live progress.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults to environment variables)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSimulateCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger shared by all
// subcommands.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
