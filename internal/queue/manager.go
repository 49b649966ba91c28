package queue

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/mediatype"
	"courier/internal/progress"
	"courier/internal/storage"
)

// Launcher starts a detached worker process.
type Launcher interface {
	Launch(ctx context.Context) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) error

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) error { return f(ctx) }

// Options tunes a Manager. Zero durations fall back to config defaults.
type Options struct {
	AliveThreshold       time.Duration
	TransferGhostAfter   time.Duration
	MultiTrackGhostAfter time.Duration
	HistoryLimit         int
	Launcher             Launcher
	Logger               *slog.Logger
	Now                  func() time.Time
}

// OptionsFromConfig derives manager options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AliveThreshold:       config.Seconds(cfg.Worker.AliveThreshold),
		TransferGhostAfter:   config.Seconds(cfg.Worker.TransferGhostThreshold),
		MultiTrackGhostAfter: config.Seconds(cfg.Worker.MultiTrackGhostTimeout),
		HistoryLimit:         cfg.HistoryLimit(),
	}
}

// Manager implements queue, active-task, heartbeat, and history operations
// on top of the locked store.
type Manager struct {
	store    *storage.Store
	progress *progress.Tracker
	launcher Launcher
	logger   *slog.Logger
	now      func() time.Time

	aliveThreshold       time.Duration
	transferGhostAfter   time.Duration
	multiTrackGhostAfter time.Duration
	historyLimit         int
}

// NewManager builds a manager over store.
func NewManager(store *storage.Store, opts Options) *Manager {
	defaults := config.Default()
	m := &Manager{
		store:                store,
		progress:             progress.NewTracker(store),
		launcher:             opts.Launcher,
		logger:               logging.NewComponentLogger(opts.Logger, "queue"),
		now:                  opts.Now,
		aliveThreshold:       opts.AliveThreshold,
		transferGhostAfter:   opts.TransferGhostAfter,
		multiTrackGhostAfter: opts.MultiTrackGhostAfter,
		historyLimit:         opts.HistoryLimit,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.aliveThreshold <= 0 {
		m.aliveThreshold = config.Seconds(defaults.Worker.AliveThreshold)
	}
	if m.transferGhostAfter <= 0 {
		m.transferGhostAfter = config.Seconds(defaults.Worker.TransferGhostThreshold)
	}
	if m.multiTrackGhostAfter <= 0 {
		m.multiTrackGhostAfter = config.Seconds(defaults.Worker.MultiTrackGhostTimeout)
	}
	if m.historyLimit < config.MinHistoryRetention {
		if m.historyLimit <= 0 {
			m.historyLimit = defaults.History.RetentionLimit
		} else {
			m.historyLimit = config.MinHistoryRetention
		}
	}
	return m
}

// Store exposes the underlying store.
func (m *Manager) Store() *storage.Store { return m.store }

// Progress exposes the progress tracker sharing the manager's store.
func (m *Manager) Progress() *progress.Tracker { return m.progress }

// Enqueue appends item to the queue and attempts a worker spawn. A missing
// download id or enqueue time is filled in. A generic hint is refined from
// the filename; multi-track items are always audio.
func (m *Manager) Enqueue(ctx context.Context, item Item, hint mediatype.Type) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, fmt.Errorf("enqueue: %w", err)
	}
	if strings.TrimSpace(item.DownloadID) == "" {
		item.DownloadID = uuid.NewString()
	}
	if item.EnqueuedAt == 0 {
		item.EnqueuedAt = m.now().Unix()
	}
	if item.Kind == KindMultiTrack {
		item.MediaType = mediatype.Audio
	} else {
		item.MediaType = mediatype.Refine(hint, item.Filename)
	}

	ok := storage.Update(m.store, KeyQueue, []Item(nil), func(items []Item) []Item {
		return append(items, item)
	})
	if !ok {
		return Item{}, fmt.Errorf("enqueue %s: queue could not be persisted", item.DownloadID)
	}

	m.logger.Info("item enqueued",
		logging.String(logging.FieldDownloadID, item.DownloadID),
		logging.String(logging.FieldKind, string(item.Kind)),
		logging.String("filename", item.DisplayName()),
		logging.String("media_type", string(item.MediaType)),
	)

	if _, err := m.TriggerWorker(ctx); err != nil {
		logging.WarnWithContext(m.logger, "worker spawn failed; item stays queued", "worker_spawn_failed",
			logging.String(logging.FieldDownloadID, item.DownloadID),
			logging.Error(err),
		)
	}
	return item, nil
}

// TriggerWorker launches a detached worker unless the queue is empty, another
// process holds the spawn lock, or a worker heartbeat or spawn stamp is
// younger than the alive threshold. It reports whether a worker was launched.
func (m *Manager) TriggerWorker(ctx context.Context) (bool, error) {
	if m.Len() == 0 {
		return false, nil
	}

	lock := flock.New(filepath.Join(m.store.Dir(), spawnLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire spawn lock: %w", err)
	}
	if !locked {
		m.logger.Debug("spawn decision already in progress")
		return false, nil
	}
	defer func() {
		_ = lock.Unlock()
	}()

	now := m.now()
	newest := max(m.Heartbeat(), storage.Get(m.store, KeySpawnedAt, int64(0)))
	if newest > 0 && now.Sub(time.Unix(newest, 0)) < m.aliveThreshold {
		m.logger.Debug("worker alive; spawn skipped",
			logging.Duration("age", now.Sub(time.Unix(newest, 0))),
		)
		return false, nil
	}

	if m.launcher == nil {
		return false, fmt.Errorf("no worker launcher configured")
	}

	storage.Set(m.store, KeySpawnedAt, now.Unix())
	if err := m.launcher.Launch(ctx); err != nil {
		m.store.Delete(KeySpawnedAt)
		return false, fmt.Errorf("launch worker: %w", err)
	}
	m.logger.Info("worker launched", logging.String(logging.FieldEventType, "worker_spawned"))
	return true, nil
}

// Pop removes and returns the head of the queue. When the queue holds items a
// spawn attempt is made first, so a queue left without a worker heals on the
// next read.
func (m *Manager) Pop(ctx context.Context) (*Item, bool) {
	if m.Len() > 0 {
		if _, err := m.TriggerWorker(ctx); err != nil {
			m.logger.Debug("self-healing spawn failed", logging.Error(err))
		}
	}

	var head *Item
	ok := storage.Update(m.store, KeyQueue, []Item(nil), func(items []Item) []Item {
		if len(items) == 0 {
			return items
		}
		first := items[0]
		head = &first
		return items[1:]
	})
	if !ok || head == nil {
		return nil, false
	}
	return head, true
}

// List returns the queued items in FIFO order.
func (m *Manager) List() []Item {
	return storage.Get(m.store, KeyQueue, []Item(nil))
}

// Len returns the number of queued items.
func (m *Manager) Len() int {
	return len(m.List())
}

// SetActiveTask marks item as the one being processed.
func (m *Manager) SetActiveTask(item Item) {
	storage.Set(m.store, KeyActiveTask, &item)
}

// ClearActiveTask clears the active marker.
func (m *Manager) ClearActiveTask() {
	storage.Set(m.store, KeyActiveTask, nil)
}

// ActiveTask returns the active item unless the worker heartbeat is older
// than the ghost threshold of the item's kind.
func (m *Manager) ActiveTask() (*Item, bool) {
	item := storage.Get[*Item](m.store, KeyActiveTask, nil)
	if item == nil {
		return nil, false
	}
	age := m.HeartbeatAge()
	if threshold := m.GhostThreshold(item.Kind); age > threshold {
		m.logger.Debug("active task is a ghost",
			logging.String(logging.FieldDownloadID, item.DownloadID),
			logging.Duration("heartbeat_age", age),
			logging.Duration("threshold", threshold),
		)
		return nil, false
	}
	return item, true
}

// GhostThreshold returns the heartbeat age past which an active item of kind
// is considered abandoned.
func (m *Manager) GhostThreshold(kind Kind) time.Duration {
	if kind == KindMultiTrack {
		return m.multiTrackGhostAfter
	}
	return m.transferGhostAfter
}

// RemoveFromQueue cancels the waiting item at index.
func (m *Manager) RemoveFromQueue(index int) (Item, error) {
	var removed *Item
	ok := storage.Update(m.store, KeyQueue, []Item(nil), func(items []Item) []Item {
		if index < 0 || index >= len(items) {
			return items
		}
		item := items[index]
		removed = &item
		return append(items[:index:index], items[index+1:]...)
	})
	if !ok {
		return Item{}, fmt.Errorf("remove %d: queue could not be persisted", index)
	}
	if removed == nil {
		return Item{}, fmt.Errorf("remove %d: %w", index, ErrIndexOutOfRange)
	}
	m.RecordHistory(*removed, OutcomeCanceled, 0, Stats{})
	m.logger.Info("queued item removed",
		logging.String(logging.FieldDownloadID, removed.DownloadID),
		logging.Int("index", index),
	)
	return *removed, nil
}

// PurgeQueue cancels every waiting item, clears the active marker, resets
// the heartbeat, and deletes all progress documents. It returns the number
// of canceled items.
func (m *Manager) PurgeQueue() (int, error) {
	var purged []Item
	ok := storage.Update(m.store, KeyQueue, []Item(nil), func(items []Item) []Item {
		purged = items
		return []Item{}
	})
	if !ok {
		return 0, fmt.Errorf("purge: queue could not be persisted")
	}
	for _, item := range purged {
		m.RecordHistory(item, OutcomeCanceled, 0, Stats{})
	}
	m.ClearActiveTask()
	m.ResetHeartbeat()
	removed := m.progress.PurgeAll()
	m.logger.Info("queue purged",
		logging.Int("canceled", len(purged)),
		logging.Int("progress_removed", removed),
	)
	return len(purged), nil
}

// Snapshot is a point-in-time view for status readers.
type Snapshot struct {
	Queued       []Item
	Active       *Item
	Heartbeat    int64
	HeartbeatAge time.Duration
	WorkerAlive  bool
}

// Snapshot reads queue, active marker, and heartbeat without coordination
// between the keys.
func (m *Manager) Snapshot() Snapshot {
	snap := Snapshot{Queued: m.List(), Heartbeat: m.Heartbeat()}
	snap.Active, _ = m.ActiveTask()
	snap.HeartbeatAge = m.HeartbeatAge()
	snap.WorkerAlive = snap.Heartbeat > 0 && snap.HeartbeatAge < m.aliveThreshold
	return snap
}
