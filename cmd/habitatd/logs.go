package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"habitat/internal/habitat"
	"habitat/internal/journal"
	"habitat/internal/model"
)

var (
	exportKind string
	exportOut  string
)

// logsCmd groups offline maintenance of the persisted logs.
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Export or clear the persisted alert and command logs",
}

var logsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a log in the plain-text download format",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := loadManager()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		store, err := openStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer store.Close()

		var out io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			path := exportOut
			if path == "." {
				kind := "alert"
				if exportKind == "commands" {
					kind = "command"
				}
				path = habitat.ExportFilename(kind, time.Now())
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		switch exportKind {
		case "alerts":
			entries := journal.Open[model.AlertLogEntry](ctx, store, habitat.AlertLogKey, cfg.Logs.AlertLimit, nil).List(0)
			return habitat.WriteAlertLog(out, entries)
		case "commands":
			entries := journal.Open[model.CommandLogEntry](ctx, store, habitat.CommandLogKey, cfg.Logs.CommandLimit, nil).List(0)
			return habitat.WriteCommandLog(out, entries)
		default:
			return fmt.Errorf("unknown log %q (want alerts or commands)", exportKind)
		}
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty both the alert and command logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := loadManager()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		store, err := openStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer store.Close()

		alerts := journal.Open[model.AlertLogEntry](ctx, store, habitat.AlertLogKey, cfg.Logs.AlertLimit, nil)
		commands := journal.Open[model.CommandLogEntry](ctx, store, habitat.CommandLogKey, cfg.Logs.CommandLimit, nil)
		cleared := alerts.Len() + commands.Len()
		if err := alerts.Clear(ctx); err != nil {
			return err
		}
		if err := commands.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d log entries\n", cleared)
		return nil
	},
}

func init() {
	logsExportCmd.Flags().StringVarP(&exportKind, "kind", "k", "alerts", "Log to export: alerts or commands")
	logsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file; \".\" uses the dated default name, empty writes to stdout")
	logsCmd.AddCommand(logsExportCmd)
	logsCmd.AddCommand(logsClearCmd)
}
