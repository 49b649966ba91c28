package preflight

import (
	"fmt"
	"time"

	"courier/internal/queue"
)

// WorkerStatus summarizes worker liveness from a queue snapshot for status
// displays.
func WorkerStatus(snap queue.Snapshot) Result {
	const name = "Worker"

	if snap.Heartbeat <= queue.IdleHeartbeat {
		detail := "Idle"
		if len(snap.Queued) > 0 {
			detail = fmt.Sprintf("Idle with %d queued (spawns on next enqueue)", len(snap.Queued))
		}
		return Result{Name: name, Optional: true, Detail: detail}
	}

	age := snap.HeartbeatAge.Truncate(time.Second)
	if snap.WorkerAlive {
		detail := fmt.Sprintf("Running (heartbeat %s ago)", age)
		if snap.Active != nil {
			detail = fmt.Sprintf("Running %s (heartbeat %s ago)", snap.Active.DisplayName(), age)
		}
		return Result{Name: name, Passed: true, Optional: true, Detail: detail}
	}
	return Result{Name: name, Optional: true, Detail: fmt.Sprintf("Stale (last heartbeat %s ago)", age)}
}
