package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/notifications"
	"courier/internal/queue"
)

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	var peek bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show and clear pending worker notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				feed := notifications.NewFeed(mgr.Store())
				var pending []notifications.Notification
				if peek {
					pending = feed.Peek()
				} else {
					pending = feed.Drain()
				}
				if asJSON {
					if pending == nil {
						pending = []notifications.Notification{}
					}
					return writeJSON(cmd, pending)
				}
				out := cmd.OutOrStdout()
				if len(pending) == 0 {
					fmt.Fprintln(out, "No notifications")
					return nil
				}
				colorize := shouldColorize(out)
				for _, n := range pending {
					fmt.Fprintln(out, renderStatusLine(n.Time+" "+n.Action, severityKind(n.Severity), n.Message+" - "+n.Subject, colorize))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&peek, "peek", false, "Show notifications without clearing them")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func severityKind(s notifications.Severity) statusKind {
	switch s {
	case notifications.SeveritySuccess:
		return statusOK
	case notifications.SeverityWarning:
		return statusWarn
	case notifications.SeverityError:
		return statusError
	default:
		return statusInfo
	}
}
