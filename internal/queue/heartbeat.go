package queue

import (
	"math"
	"time"

	"courier/internal/storage"
)

// IdleHeartbeat is the sentinel stored when no worker is running.
const IdleHeartbeat int64 = 0

// Heartbeat returns the stored heartbeat in unix seconds.
func (m *Manager) Heartbeat() int64 {
	return storage.Get(m.store, KeyHeartbeat, IdleHeartbeat)
}

// Beat refreshes the heartbeat to now.
func (m *Manager) Beat() {
	storage.Set(m.store, KeyHeartbeat, m.now().Unix())
}

// ResetHeartbeat stores the idle sentinel and clears the spawn stamp so the
// next enqueue may launch a worker immediately.
func (m *Manager) ResetHeartbeat() {
	storage.Set(m.store, KeyHeartbeat, IdleHeartbeat)
	m.store.Delete(KeySpawnedAt)
}

// HeartbeatAge returns the time since the last beat. An idle or missing
// heartbeat is infinitely old.
func (m *Manager) HeartbeatAge() time.Duration {
	hb := m.Heartbeat()
	if hb <= IdleHeartbeat {
		return time.Duration(math.MaxInt64)
	}
	age := m.now().Sub(time.Unix(hb, 0))
	if age < 0 {
		return 0
	}
	return age
}
