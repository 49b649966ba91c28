package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/mediatype"
	"courier/internal/preflight"
	"courier/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker liveness, queue depth, and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, mgr *queue.Manager) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				snap := mgr.Snapshot()

				var lines []string
				lines = append(lines, renderSectionHeader("Worker", colorize)...)
				worker := preflight.WorkerStatus(snap)
				lines = append(lines, renderStatusLine(worker.Name, workerKind(worker, snap), worker.Detail, colorize))
				if snap.Active != nil {
					lines = append(lines, renderStatusLine("Active item", statusInfo, activeDetail(mgr, *snap.Active), colorize))
				}

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Queue", colorize)...)
				lines = append(lines, renderStatusLine("Queued", statusInfo, fmt.Sprintf("%d", len(snap.Queued)), colorize))
				_, total := mgr.HistoryPage(1, 1)
				lines = append(lines, renderStatusLine("History entries", statusInfo, fmt.Sprintf("%d (limit %d)", total, cfg.HistoryLimit()), colorize))

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Readiness", colorize)...)
				for _, check := range preflight.RunAll(cmd.Context(), cfg) {
					lines = append(lines, renderStatusLine(check.Name, checkKind(check), check.Detail, colorize))
				}

				fmt.Fprintln(out, strings.Join(lines, "\n"))
				return nil
			})
		},
	}
}

func workerKind(r preflight.Result, snap queue.Snapshot) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case snap.Heartbeat > queue.IdleHeartbeat:
		return statusWarn
	default:
		return statusInfo
	}
}

func activeDetail(mgr *queue.Manager, item queue.Item) string {
	detail := fmt.Sprintf("%s %s (%s)", mediatype.Icon(item.MediaType), item.DisplayName(), shortID(item.DownloadID))
	if rec, ok := mgr.Progress().Read(item.DownloadID); ok {
		detail += fmt.Sprintf(" %.1f%% %s", rec.Percentage, rec.Speed)
	}
	return detail
}
