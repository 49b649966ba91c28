package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/queue"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "progress <download-id>",
		Short: "Show the progress record of a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				id, err := resolveDownloadID(mgr, args[0])
				if err != nil {
					return err
				}
				rec, ok := mgr.Progress().Read(id)
				if !ok {
					return fmt.Errorf("no progress recorded for %s", args[0])
				}
				if asJSON {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s\n", strings.ToUpper(rec.Status), rec.Filename)
				fmt.Fprintf(out, "  %.1f%%  %s", rec.Percentage, rec.Speed)
				if rec.Total > 0 {
					fmt.Fprintf(out, "  %s / %s", humanBytes(rec.Downloaded), humanBytes(rec.Total))
				}
				fmt.Fprintln(out)
				if rec.Message != "" {
					fmt.Fprintf(out, "  %s\n", rec.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

// resolveDownloadID expands a short id prefix against the queue, the active
// marker, and history.
func resolveDownloadID(mgr *queue.Manager, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("download id is required")
	}
	var candidates []string
	if active, ok := mgr.ActiveTask(); ok {
		candidates = append(candidates, active.DownloadID)
	}
	for _, item := range mgr.List() {
		candidates = append(candidates, item.DownloadID)
	}
	for _, entry := range mgr.History() {
		candidates = append(candidates, entry.DownloadID)
	}

	match := ""
	for _, id := range candidates {
		if id == value {
			return id, nil
		}
		if strings.HasPrefix(id, value) {
			if match != "" && match != id {
				return "", fmt.Errorf("download id %q is ambiguous", value)
			}
			match = id
		}
	}
	if match == "" {
		return value, nil
	}
	return match, nil
}
