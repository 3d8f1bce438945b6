// Package cmd implements the seasonal command line.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "seasonal",
	Short: "Calendar-driven futures scheduler and execution engine",
	Long: `Seasonal turns recurring calendar rules into dated trading windows and
executes them against a broker gateway.

Commands:
  - run:         materialize and execute on a fixed cadence, serve status
  - materialize: reconcile trading windows against rules once
  - execute:     run one execution pass
  - seed:        load symbols and rules into the store`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
}
