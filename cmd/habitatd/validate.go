package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file and print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return errors.New("--config is required")
		}
		mgr, err := loadManager()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config ok: %s\n", mgr.Path())
		fmt.Fprintf(out, "  storage:    %s\n", cfg.Storage.Driver)
		fmt.Fprintf(out, "  tick:       %s (step %g)\n", cfg.Simulation.TickInterval, cfg.Simulation.TickStep)
		fmt.Fprintf(out, "  occupancy:  %s across %d bays\n", cfg.Simulation.OccupancyInterval, cfg.Simulation.Bays)
		fmt.Fprintf(out, "  api:        %v %s\n", cfg.API.Enabled, cfg.API.Addr)
		fmt.Fprintf(out, "  terminal:   %v %s\n", cfg.Terminal.Enabled, cfg.Terminal.Addr)
		fmt.Fprintf(out, "  stream:     %v %v\n", cfg.Stream.Enabled, cfg.Stream.Brokers)
		return nil
	},
}
