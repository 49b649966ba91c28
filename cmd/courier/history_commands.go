package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/mediatype"
	"courier/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var page int
	var perPage int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished, failed, and canceled items (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				entries, total := mgr.HistoryPage(page, perPage)
				if asJSON {
					return writeJSON(cmd, struct {
						Page    int                  `json:"page"`
						Total   int                  `json:"total"`
						Entries []queue.HistoryEntry `json:"entries"`
					}{Page: page, Total: total, Entries: entries})
				}
				out := cmd.OutOrStdout()
				if total == 0 {
					fmt.Fprintln(out, "History is empty")
					return nil
				}
				if len(entries) == 0 {
					fmt.Fprintf(out, "Page %d is past the end (%d entries)\n", page, total)
					return nil
				}
				fmt.Fprint(out, renderTable(historyColumns, buildHistoryRows(entries)))
				pages := (total + perPage - 1) / perPage
				fmt.Fprintf(out, "Page %d of %d (%d entries)\n", page, pages, total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "Entries per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if page < 1 || perPage < 1 {
			return fmt.Errorf("--page and --per-page must be positive")
		}
		return nil
	}
	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

var historyColumns = []column{
	{title: "Date"},
	{title: "ID"},
	{title: "Name", maxWidth: 40},
	{title: "Type"},
	{title: "Status"},
	{title: "Files", numeric: true},
	{title: "Size", numeric: true},
	{title: "Speed", numeric: true},
}

func buildHistoryRows(entries []queue.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		size := "-"
		if entry.Size > 0 {
			size = humanBytes(entry.Size)
		}
		speed := entry.Speed
		if speed == "" {
			speed = "-"
		}
		rows = append(rows, []string{
			entry.Date,
			shortID(entry.DownloadID),
			entry.Filename,
			mediatype.Label(entry.MediaType),
			string(entry.Status),
			strconv.Itoa(entry.FileCount),
			size,
			speed,
		})
	}
	return rows
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				mgr.ClearHistory()
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	}
}
