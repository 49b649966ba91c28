package preflight

import (
	"context"
	"strings"

	"courier/internal/config"
	"courier/internal/spawn"
)

// Result reports the outcome of a single preflight check. Optional checks
// never block readiness.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every readiness check that applies to cfg.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir)}
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.StorageDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckWorkerBinary(cfg))

	multitrack := []Requirement{
		{Name: "Multi-track downloader", Command: cfg.MultiTrack.Binary, Optional: true},
	}
	if verify := strings.TrimSpace(cfg.MultiTrack.VerifyBinary); verify != "" && verify != cfg.MultiTrack.Binary {
		multitrack = append(multitrack, Requirement{Name: "Track verifier", Command: verify, Optional: true})
	}
	results = append(results, CheckBinaries(multitrack)...)

	if root := strings.TrimSpace(cfg.MultiTrack.RootPath); root != "" {
		check := CheckDirectoryAccess("Music root", root)
		check.Optional = true
		results = append(results, check)
	}
	return results
}

// CheckWorkerBinary resolves the worker executable the way the launcher does.
func CheckWorkerBinary(cfg *config.Config) Result {
	const name = "Worker binary"
	path, err := spawn.ResolveBinary(cfg.Worker.Binary)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// Ready reports whether every required check passed.
func Ready(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return false
		}
	}
	return true
}
