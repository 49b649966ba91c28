package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/mediatype"
	"courier/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the pending queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued items in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				items := mgr.List()
				active, hasActive := mgr.ActiveTask()
				if asJSON {
					return writeJSON(cmd, struct {
						Active *queue.Item   `json:"active,omitempty"`
						Queued []queue.Item `json:"queued"`
					}{Active: active, Queued: items})
				}

				out := cmd.OutOrStdout()
				if hasActive {
					fmt.Fprintf(out, "Active: %s %s (%s)\n", mediatype.Icon(active.MediaType), active.DisplayName(), shortID(active.DownloadID))
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(queueColumns, buildQueueRows(items)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

var queueColumns = []column{
	{title: "#", numeric: true},
	{title: "ID"},
	{title: "Name", maxWidth: 48},
	{title: "Kind"},
	{title: "Type"},
	{title: "Enqueued"},
}

func buildQueueRows(items []queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			shortID(item.DownloadID),
			item.DisplayName(),
			string(item.Kind),
			mediatype.Label(item.MediaType),
			formatUnix(item.EnqueuedAt),
		})
	}
	return rows
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <position>",
		Short: "Cancel a queued item by its list position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				removed, err := mgr.RemoveFromQueue(index)
				if err != nil {
					return fmt.Errorf("remove position %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", removed.DisplayName(), shortID(removed.DownloadID))
				return nil
			})
		},
	}
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Cancel every queued item and reset worker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				count, err := mgr.PurgeQueue()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d queued items\n", count)
				return nil
			})
		},
	}
}
