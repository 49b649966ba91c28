package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeTransfer()
	if err := c.normalizeMultiTrack(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = c.Paths.StorageDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorker() {
	c.Worker.Binary = strings.TrimSpace(c.Worker.Binary)
	if c.Worker.Binary == "" {
		c.Worker.Binary = defaultWorkerBinary
	}
	if c.Worker.IdleRecheckMillis <= 0 {
		c.Worker.IdleRecheckMillis = defaultIdleRecheckMillis
	}
	if c.Worker.ItemPauseMillis < 0 {
		c.Worker.ItemPauseMillis = 0
	}
}

func (c *Config) normalizeTransfer() {
	c.Transfer.UserAgent = strings.TrimSpace(c.Transfer.UserAgent)
	if c.Transfer.UserAgent == "" {
		c.Transfer.UserAgent = defaultUserAgent
	}
	if c.Transfer.IntegrityThreshold <= 0 {
		c.Transfer.IntegrityThreshold = defaultIntegrityThreshold
	}
}

func (c *Config) normalizeMultiTrack() error {
	c.MultiTrack.Binary = strings.TrimSpace(c.MultiTrack.Binary)
	if c.MultiTrack.Binary == "" {
		c.MultiTrack.Binary = defaultMultiTrackBinary
	}
	c.MultiTrack.VerifyBinary = strings.TrimSpace(c.MultiTrack.VerifyBinary)
	if c.MultiTrack.VerifyBinary == "" {
		c.MultiTrack.VerifyBinary = c.MultiTrack.Binary
	}
	if strings.TrimSpace(c.MultiTrack.OutputTemplate) == "" {
		c.MultiTrack.OutputTemplate = defaultMultiTrackOutput
	}
	c.MultiTrack.Format = strings.ToLower(strings.TrimSpace(c.MultiTrack.Format))
	if c.MultiTrack.Format == "" {
		c.MultiTrack.Format = defaultMultiTrackFormat
	}
	c.MultiTrack.Quality = strings.TrimSpace(c.MultiTrack.Quality)
	if c.MultiTrack.Quality == "" {
		c.MultiTrack.Quality = defaultMultiTrackQuality
	}
	if c.MultiTrack.TimeoutSeconds <= 0 {
		c.MultiTrack.TimeoutSeconds = defaultMultiTrackTimeout
	}

	var err error
	if c.MultiTrack.RootPath, err = expandPath(strings.TrimSpace(c.MultiTrack.RootPath)); err != nil {
		return fmt.Errorf("multitrack.root_path: %w", err)
	}
	if c.MultiTrack.Credentials, err = expandPath(strings.TrimSpace(c.MultiTrack.Credentials)); err != nil {
		return fmt.Errorf("multitrack.credentials: %w", err)
	}
	if c.MultiTrack.Archive, err = expandPath(strings.TrimSpace(c.MultiTrack.Archive)); err != nil {
		return fmt.Errorf("multitrack.archive: %w", err)
	}
	if strings.TrimSpace(c.MultiTrack.HomeDir) == "" {
		c.MultiTrack.HomeDir = filepath.Join(c.Paths.StorageDir, "home")
	}
	if c.MultiTrack.HomeDir, err = expandPath(c.MultiTrack.HomeDir); err != nil {
		return fmt.Errorf("multitrack.home_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("COURIER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
