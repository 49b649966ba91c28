// Package spawn launches the background worker as a detached process that
// outlives the short-lived process that enqueued work.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"courier/internal/config"
	"courier/internal/logging"
)

// ProcessLauncher starts the worker binary in its own session with no
// inherited stdio and releases it immediately.
type ProcessLauncher struct {
	Path       string
	Args       []string
	ConfigPath string
	Env        []string
	Logger     *slog.Logger
}

// NewProcessLauncher resolves the worker binary named in cfg. The config file
// path is forwarded through the environment so the worker needs no
// arguments.
func NewProcessLauncher(cfg *config.Config, logger *slog.Logger) (*ProcessLauncher, error) {
	path, err := ResolveBinary(cfg.Worker.Binary)
	if err != nil {
		return nil, err
	}
	return &ProcessLauncher{
		Path:       path,
		ConfigPath: cfg.SourcePath,
		Logger:     logging.NewComponentLogger(logger, "spawn"),
	}, nil
}

// Launch starts the worker and returns once the process has been released.
func (l *ProcessLauncher) Launch(ctx context.Context) error {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return errors.New("resolve worker: executable path is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Not exec.CommandContext: the worker must survive ctx.
	proc := exec.Command(l.Path, l.Args...)
	proc.Env = append(os.Environ(), l.Env...)
	if cfgPath := strings.TrimSpace(l.ConfigPath); cfgPath != "" {
		proc.Env = append(proc.Env, config.EnvConfigPath+"="+cfgPath)
	}
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	proc.Stdin = nil
	proc.Stdout = nil
	proc.Stderr = nil

	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch worker: %w", err)
	}
	pid := proc.Process.Pid
	if err := proc.Process.Release(); err != nil {
		return fmt.Errorf("release worker: %w", err)
	}
	if l.Logger != nil {
		l.Logger.Debug("worker process detached",
			logging.String("path", l.Path),
			logging.Int("pid", pid),
		)
	}
	return nil
}

// ResolveBinary locates the worker executable. An explicit path is used as
// is; a bare name is looked up next to the running executable, then on PATH.
func ResolveBinary(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("resolve worker: binary name is empty")
	}
	if strings.ContainsRune(name, filepath.Separator) {
		expanded, err := config.ExpandPath(name)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", fmt.Errorf("resolve worker %q: %w", expanded, err)
		}
		return expanded, nil
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("resolve worker %q: %w", name, err)
	}
	return path, nil
}
