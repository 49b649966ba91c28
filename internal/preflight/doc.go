// Package preflight provides readiness checks for the filesystem paths and
// external binaries courier depends on.
//
// The CLI "courier status" command runs RunAll and renders each Result;
// the worker runs the storage check once at start-up and refuses to drain
// a queue it cannot persist. Optional checks (multi-track tooling, worker
// liveness) are reported but never block readiness.
package preflight
