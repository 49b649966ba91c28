package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/fileutil"
	"courier/internal/queue"
	"courier/internal/worker"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var workerLog bool
	var truncateLog bool

	cmd := &cobra.Command{
		Use:   "logs [download-id]",
		Short: "Tail the active worker log, an item's log, or the worker's own log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, mgr *queue.Manager) error {
				path := worker.ActiveLogPath(cfg.ItemLogDir())
				switch {
				case workerLog:
					path = cfg.WorkerLogPath()
				case len(args) == 1:
					id, err := resolveDownloadID(mgr, args[0])
					if err != nil {
						return err
					}
					path = worker.HistoryLogPath(cfg.ItemLogDir(), id)
				}

				if truncateLog {
					if err := fileutil.ResetFile(path); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", path)
					return nil
				}
				if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no log at %s", path)
				}
				tail, err := fileutil.TailLines(path, lines)
				if err != nil {
					return err
				}
				if len(tail) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tail, "\n"))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines")
	cmd.Flags().BoolVar(&workerLog, "worker", false, "Show worker.log instead of item output")
	cmd.Flags().BoolVar(&truncateLog, "clear", false, "Truncate the selected log instead of printing it")
	return cmd
}
