package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateMultiTrack(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorker() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.alive_threshold":            c.Worker.AliveThreshold,
		"worker.already_running_threshold":  c.Worker.AlreadyRunningThreshold,
		"worker.transfer_ghost_threshold":   c.Worker.TransferGhostThreshold,
		"worker.multitrack_ghost_threshold": c.Worker.MultiTrackGhostTimeout,
	}); err != nil {
		return err
	}
	if c.Worker.MultiTrackGhostTimeout < c.Worker.TransferGhostThreshold {
		return errors.New("worker.multitrack_ghost_threshold must not be shorter than worker.transfer_ghost_threshold")
	}
	return nil
}

func (c *Config) validateTransfer() error {
	return ensurePositiveMap(map[string]int{
		"transfer.reentry_window":     c.Transfer.ReentryWindow,
		"transfer.connect_timeout":    c.Transfer.ConnectTimeout,
		"transfer.heartbeat_interval": c.Transfer.HeartbeatInterval,
	})
}

func (c *Config) validateMultiTrack() error {
	if c.MultiTrack.Retries < 0 {
		return errors.New("multitrack.retries must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
