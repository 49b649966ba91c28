// Package storage persists one JSON document per key inside a shared
// directory, guarding each key with an advisory file lock so that producer
// processes and the worker can read and write the same state.
//
// Reads never fail: an absent, unreadable, or unparsable document yields the
// caller's default. Writes never fail either; I/O and lock errors are logged
// and dropped, so callers must assume eventual rather than guaranteed
// persistence. Locks cover a single key only. Invariants spanning several
// keys are maintained by call ordering in the queue package.
package storage
