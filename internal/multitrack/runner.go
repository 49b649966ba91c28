package multitrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"courier/internal/config"
	"courier/internal/queue"
)

var commandContext = exec.CommandContext

const stderrTailLimit = 4096

// Runner executes multi-track jobs.
type Runner interface {
	Run(ctx context.Context, item queue.Item, onOutput func([]byte)) error
	Verify(ctx context.Context, root string) ([]queue.Track, error)
}

// CLI runs the downloader as a subprocess.
type CLI struct {
	binary       string
	verifyBinary string
	settings     config.MultiTrack
	timeout      time.Duration
}

// NewCLI builds a runner from the multitrack config section.
func NewCLI(settings config.MultiTrack) *CLI {
	verify := strings.TrimSpace(settings.VerifyBinary)
	if verify == "" {
		verify = settings.Binary
	}
	timeout := config.Seconds(settings.TimeoutSeconds)
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &CLI{
		binary:       settings.Binary,
		verifyBinary: verify,
		settings:     settings,
		timeout:      timeout,
	}
}

// RootPath returns the directory verification scans.
func (c *CLI) RootPath() string {
	return c.settings.RootPath
}

// Args returns the downloader arguments for url.
func (c *CLI) Args(url string) []string {
	s := c.settings
	return []string{
		url,
		"--output", s.OutputTemplate,
		"--download-format", s.Format,
		"--root-path", s.RootPath,
		"--credentials-location", s.Credentials,
		"--song-archive", s.Archive,
		"--download-quality", s.Quality,
		"--retry-attempts", strconv.Itoa(s.Retries),
		"--skip-previously-downloaded", pyBool(s.SkipExisting),
		"--download-lyrics", pyBool(s.DownloadLyrics),
		"--print-download-progress", pyBool(s.PrintProgress),
		"--print-downloads", pyBool(s.PrintDownloads),
		"--print-progress-info", pyBool(s.PrintProgressLog),
	}
}

// CommandLine renders the full invocation for logs.
func (c *CLI) CommandLine(url string) string {
	parts := []string{c.binary}
	for _, arg := range c.Args(url) {
		parts = append(parts, strconv.Quote(arg))
	}
	return strings.Join(parts, " ")
}

// Run executes the downloader for item. Each stdout or stderr chunk is passed
// to onOutput as it arrives.
func (c *CLI) Run(ctx context.Context, item queue.Item, onOutput func([]byte)) error {
	if strings.TrimSpace(c.binary) == "" {
		return &queue.ConfigurationError{Field: "multitrack.binary", Message: "downloader binary not configured"}
	}
	if strings.TrimSpace(item.URL) == "" {
		return &queue.ConfigurationError{Field: "url", Message: "multitrack item has no url"}
	}
	extraEnv, err := c.environment(true)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := commandContext(runCtx, c.binary, c.Args(item.URL)...) //nolint:gosec
	cmd.Env = withEnv(cmd.Env, extraEnv)
	// Both streams share one mutex so onOutput is never called concurrently.
	var mu sync.Mutex
	out := &chunkWriter{mu: &mu, onOutput: onOutput}
	errOut := &chunkWriter{mu: &mu, onOutput: onOutput, keepTail: true}
	cmd.Stdout = out
	cmd.Stderr = errOut

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start multitrack downloader: %w", err)
	}
	waitErr := cmd.Wait()
	if waitErr == nil {
		return nil
	}

	toolErr := &queue.ExternalToolError{
		Tool:     filepath.Base(c.binary),
		ExitCode: -1,
		Stderr:   errOut.tail(),
		Err:      waitErr,
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		toolErr.Err = fmt.Errorf("timed out after %s: %w", c.timeout, waitErr)
	} else if ctx.Err() != nil {
		return ctx.Err()
	}
	return toolErr
}

// Verify lists the tracks present under root.
func (c *CLI) Verify(ctx context.Context, root string) ([]queue.Track, error) {
	if strings.TrimSpace(c.verifyBinary) == "" {
		return nil, &queue.ConfigurationError{Field: "multitrack.verify_binary", Message: "verification binary not configured"}
	}
	extraEnv, err := c.environment(false)
	if err != nil {
		return nil, err
	}
	cmd := commandContext(ctx, c.verifyBinary, "--verify", root) //nolint:gosec
	cmd.Env = withEnv(cmd.Env, extraEnv)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("verify tracks: %w", err)
	}
	var tracks []queue.Track
	if err := json.Unmarshal(output, &tracks); err != nil {
		return nil, fmt.Errorf("decode verified tracks: %w", err)
	}
	return tracks, nil
}

// environment points the tool at a private home directory so it never
// writes configuration into the service account's real home.
func (c *CLI) environment(unbuffered bool) ([]string, error) {
	var env []string
	if unbuffered {
		env = append(env, "PYTHONUNBUFFERED=1")
	}
	home := strings.TrimSpace(c.settings.HomeDir)
	if home == "" {
		return env, nil
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("create downloader home: %w", err)
	}
	env = append(env,
		"HOME="+home,
		"USERPROFILE="+home,
		"APPDATA="+filepath.Join(home, "AppData", "Roaming"),
	)
	return env, nil
}

func withEnv(base, extra []string) []string {
	if base == nil {
		base = os.Environ()
	}
	return append(base, extra...)
}

func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// chunkWriter forwards subprocess output and optionally keeps a bounded tail.
type chunkWriter struct {
	mu       *sync.Mutex
	onOutput func([]byte)
	keepTail bool
	buf      []byte
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.keepTail {
		w.buf = append(w.buf, p...)
		if over := len(w.buf) - stderrTailLimit; over > 0 {
			w.buf = append([]byte(nil), w.buf[over:]...)
		}
	}
	if w.onOutput != nil && len(p) > 0 {
		w.onOutput(append([]byte(nil), p...))
	}
	return len(p), nil
}

func (w *chunkWriter) tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}

var _ Runner = (*CLI)(nil)
