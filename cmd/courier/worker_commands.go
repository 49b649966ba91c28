package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Control the background worker",
	}
	workerCmd.AddCommand(newWorkerStartCommand(ctx))
	workerCmd.AddCommand(newWorkerRunCommand(ctx))
	return workerCmd
}

func newWorkerStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Launch a detached worker if the queue holds work and none is alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(_ *config.Config, mgr *queue.Manager) error {
				launched, err := mgr.TriggerWorker(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case launched:
					fmt.Fprintln(out, "Worker launched")
				case mgr.Len() == 0:
					fmt.Fprintln(out, "Queue is empty; no worker needed")
				default:
					fmt.Fprintln(out, "Worker already running")
				}
				return nil
			})
		},
	}
}

func newWorkerRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drain the queue in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg, cfg.WorkerLogPath())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return ctx.withManager(func(cfg *config.Config, mgr *queue.Manager) error {
				loop := worker.NewFromConfig(cfg, mgr, logger)
				state, err := loop.Run(cmd.Context())
				if err != nil {
					return err
				}
				summary := loop.Summary()
				fmt.Fprintf(cmd.OutOrStdout(), "Worker %s: %d processed, %d failed\n", state, summary.Processed, summary.Failed)
				return nil
			})
		},
	}
}
