package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/storage"
	"courier/internal/worker"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes CLI diagnostics to stderr so command output stays clean.
func (c *commandContext) logger(cfg *config.Config) *slog.Logger {
	level := "warn"
	if c.verbose != nil && *c.verbose {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withManager opens the shared store and hands fn a queue manager able to
// launch the worker.
func (c *commandContext) withManager(fn func(*config.Config, *queue.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := c.logger(cfg)
	store, err := storage.Open(cfg.Paths.StorageDir, logger)
	if err != nil {
		return err
	}
	return fn(cfg, worker.NewQueueManager(cfg, store, logger))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
