// Command courier enqueues transfers and multi-track acquisitions and
// inspects the shared queue, history, progress and logs. Enqueuing launches
// the detached courierd worker when none is alive.
package main
