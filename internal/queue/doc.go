// Package queue coordinates the single-lane download queue shared by
// producer processes and the background worker.
//
// The Manager owns the persisted FIFO list, the active-task marker, the
// worker heartbeat, and the capped history. Every piece of state lives in
// its own storage key; each operation re-reads, mutates, and writes back the
// whole value. Sequences that touch several keys (pop then mark active) are
// not atomic, and readers tolerate the gap through heartbeat-based ghost
// detection.
//
// Worker spawning is gated by a non-blocking lock on a dedicated file plus
// the heartbeat and spawn-stamp ages read while that lock is held. The lock
// covers only the decision, not the worker's lifetime. A worker that dies
// inside the alive window after being spawned delays the next spawn by at
// most that window.
package queue
