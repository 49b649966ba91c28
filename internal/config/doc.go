// Package config loads, normalizes, and validates courier configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the COURIER_CONFIG environment
// variable so a worker launched without arguments finds the same storage
// directory as the process that enqueued work. The Config type centralizes
// every knob the worker and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, floored limits, and clear validation errors.
package config
