package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath names the environment variable carrying the config file path
// from an enqueuing process to the worker it launches.
const EnvConfigPath = "COURIER_CONFIG"

// Paths contains directory configuration.
type Paths struct {
	StorageDir string `toml:"storage_dir"`
	LogDir     string `toml:"log_dir"`
}

// Worker contains worker process launch and liveness settings. All
// thresholds are expressed in seconds unless the name says otherwise.
type Worker struct {
	Binary                  string `toml:"binary"`
	AliveThreshold          int    `toml:"alive_threshold"`
	AlreadyRunningThreshold int    `toml:"already_running_threshold"`
	TransferGhostThreshold  int    `toml:"transfer_ghost_threshold"`
	MultiTrackGhostTimeout  int    `toml:"multitrack_ghost_threshold"`
	IdleRecheckMillis       int    `toml:"idle_recheck_ms"`
	ItemPauseMillis         int    `toml:"item_pause_ms"`
}

// Transfer contains streaming download settings.
type Transfer struct {
	UserAgent          string `toml:"user_agent"`
	ReentryWindow      int    `toml:"reentry_window"`
	ConnectTimeout     int    `toml:"connect_timeout"`
	HeartbeatInterval  int    `toml:"heartbeat_interval"`
	IntegrityThreshold int64  `toml:"integrity_threshold"`
}

// History contains history bookkeeping settings.
type History struct {
	RetentionLimit int `toml:"retention_limit"`
}

// MultiTrack contains settings for the external multi-track downloader.
type MultiTrack struct {
	Binary           string `toml:"binary"`
	VerifyBinary     string `toml:"verify_binary"`
	RootPath         string `toml:"root_path"`
	Credentials      string `toml:"credentials"`
	Archive          string `toml:"archive"`
	OutputTemplate   string `toml:"output_template"`
	Format           string `toml:"format"`
	Quality          string `toml:"quality"`
	Retries          int    `toml:"retries"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	HomeDir          string `toml:"home_dir"`
	SkipExisting     bool   `toml:"skip_existing"`
	DownloadLyrics   bool   `toml:"download_lyrics"`
	PrintProgress    bool   `toml:"print_progress"`
	PrintDownloads   bool   `toml:"print_downloads"`
	PrintProgressLog bool   `toml:"print_progress_info"`
}

// Notifications contains configuration for ntfy push notifications. The
// server notification feed is always on.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for courier.
//
// Configuration sections by subsystem:
//   - Paths: storage directory shared by producers and the worker
//   - Worker: launch binary, liveness and ghost thresholds
//   - Transfer: streaming download behaviour
//   - History: retention
//   - MultiTrack: external multi-track downloader invocation
//   - Notifications: optional ntfy push
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Worker        Worker        `toml:"worker"`
	Transfer      Transfer      `toml:"transfer"`
	History       History       `toml:"history"`
	MultiTrack    MultiTrack    `toml:"multitrack"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`

	// SourcePath is the file the config was loaded from, if any.
	SourcePath string `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/courier/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		cfg.SourcePath = resolvedPath
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the storage and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StorageDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryLimit returns the configured retention limit with the floor applied.
func (c *Config) HistoryLimit() int {
	if c.History.RetentionLimit < MinHistoryRetention {
		return MinHistoryRetention
	}
	return c.History.RetentionLimit
}

// ItemLogDir returns the directory holding per-item and rolling worker logs.
func (c *Config) ItemLogDir() string {
	return filepath.Join(c.Paths.LogDir, "logs")
}

// WorkerLogPath returns the worker's own log file.
func (c *Config) WorkerLogPath() string {
	return filepath.Join(c.Paths.LogDir, "worker.log")
}

// Seconds converts an integer seconds setting into a duration.
func Seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// Millis converts an integer milliseconds setting into a duration.
func Millis(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
