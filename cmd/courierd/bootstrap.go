package main

import (
	"context"
	"fmt"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/preflight"
	"courier/internal/storage"
	"courier/internal/worker"
)

// run loads configuration (the launcher passes its path through the
// environment), opens the shared store, and drains the queue once.
func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg, cfg.WorkerLogPath())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if check := preflight.CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir); !check.Passed {
		return fmt.Errorf("storage unavailable: %s", check.Detail)
	}

	store, err := storage.Open(cfg.Paths.StorageDir, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	mgr := worker.NewQueueManager(cfg, store, logger)
	loop := worker.NewFromConfig(cfg, mgr, logger)
	state, err := loop.Run(ctx)
	if err != nil {
		return err
	}
	summary := loop.Summary()
	logger.Info("courierd exiting",
		logging.String("state", string(state)),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
	)
	return nil
}
