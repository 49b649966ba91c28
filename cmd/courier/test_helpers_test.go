package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/config"
	"courier/internal/queue"
	"courier/internal/storage"
	"courier/internal/testsupport"
	"courier/internal/worker"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *storage.Store
	mgr        *queue.Manager
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		mgr:        worker.NewQueueManager(cfg, store, nil),
		configPath: configPath,
		baseDir:    base,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, args, e.configPath)
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
