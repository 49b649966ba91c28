// Package logging assembles structured slog loggers and formatting helpers used
// across courier.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so worker code can tag log lines
// with the queue item being processed. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
