// Package worker implements the background process that drains the queue.
//
// A Loop moves through Init, then either AlreadyRunning (another worker's
// heartbeat is fresh) or Running. Each Running iteration refreshes the
// heartbeat and pops one item; an empty queue is checked twice before the
// loop resets the heartbeat to idle and ends Drained. Every per-item failure,
// including a panic, is recorded to history and announced, and the loop moves
// on to the next item.
package worker
