package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

// rootCmd is the habitat daemon and its maintenance commands.
var rootCmd = &cobra.Command{
	Use:   "habitatd",
	Short: "Simulated Mars habitat telemetry and alerting service",
	Long: `habitatd generates synthetic habitat telemetry once per tick, evaluates it
against the alert thresholds, and keeps persistent alert and command logs.

Available subcommands:
  run      - Start the simulation, HTTP API and optional terminal listener
  validate - Check a configuration file
  logs     - Export or clear the persisted logs`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(logsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
