package worker

import (
	"context"
	"log/slog"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/multitrack"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/transfer"
)

// State is a worker lifecycle state.
type State string

const (
	StateInit           State = "init"
	StateAlreadyRunning State = "already_running"
	StateRunning        State = "running"
	StateDrained        State = "drained"
	StateStopped        State = "stopped"
)

// Transferer performs ordinary transfers.
type Transferer interface {
	Transfer(ctx context.Context, req transfer.Request, heartbeat func()) transfer.Result
}

// Dependencies are the collaborators a Loop drives.
type Dependencies struct {
	Queue      *queue.Manager
	Transfers  Transferer
	MultiTrack multitrack.Runner
	Notifier   notifications.Publisher
	Logger     *slog.Logger
	// LogDir receives active_worker.log and history_<id>.log.
	LogDir string
	// MusicRoot is scanned by multi-track verification; item paths are
	// used when empty.
	MusicRoot string
}

// Options holds the loop's timing thresholds.
type Options struct {
	AlreadyRunningAfter time.Duration
	IdleRecheck         time.Duration
	ItemPause           time.Duration
}

// OptionsFromConfig derives loop timing from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AlreadyRunningAfter: config.Seconds(cfg.Worker.AlreadyRunningThreshold),
		IdleRecheck:         config.Millis(cfg.Worker.IdleRecheckMillis),
		ItemPause:           config.Millis(cfg.Worker.ItemPauseMillis),
	}
}

// Summary counts what a run did.
type Summary struct {
	Processed int
	Failed    int
}

// Loop is the worker state machine.
type Loop struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
	state  State
	stats  Summary
}

// New builds a loop.
func New(deps Dependencies, opts Options) *Loop {
	if deps.Notifier == nil {
		deps.Notifier = notifications.Multi{}
	}
	if opts.AlreadyRunningAfter <= 0 {
		opts.AlreadyRunningAfter = 25 * time.Second
	}
	if opts.IdleRecheck <= 0 {
		opts.IdleRecheck = 500 * time.Millisecond
	}
	if opts.ItemPause < 0 {
		opts.ItemPause = 0
	}
	return &Loop{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, "worker"),
		state:  StateInit,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return l.state }

// Summary returns counters for the current run.
func (l *Loop) Summary() Summary { return l.stats }

// Run drives the loop until the queue drains, another worker is detected at
// start-up, or ctx is canceled. A canceled context lets the current item
// finish its failure handling, then resets the heartbeat.
func (l *Loop) Run(ctx context.Context) (State, error) {
	q := l.deps.Queue
	l.state = StateInit

	if age := q.HeartbeatAge(); age < l.opts.AlreadyRunningAfter {
		l.logger.Info("another worker is active; exiting",
			logging.Duration("heartbeat_age", age),
			logging.String(logging.FieldEventType, "worker_already_running"),
		)
		l.state = StateAlreadyRunning
		return l.state, nil
	}

	l.state = StateRunning
	l.logger.Info("worker started",
		logging.Int("queued", q.Len()),
		logging.String(logging.FieldEventType, "worker_started"),
	)

	for {
		if ctx.Err() != nil {
			return l.stop()
		}
		q.Beat()

		item, ok := q.Pop(ctx)
		if !ok {
			if !sleep(ctx, l.opts.IdleRecheck) {
				return l.stop()
			}
			item, ok = q.Pop(ctx)
		}
		if !ok {
			q.ResetHeartbeat()
			// A producer that enqueued while our heartbeat was still fresh
			// skipped spawning; pick its item up instead of stranding it.
			if q.Len() > 0 {
				continue
			}
			l.state = StateDrained
			l.logger.Info("queue drained; worker exiting",
				logging.Int("processed", l.stats.Processed),
				logging.Int("failed", l.stats.Failed),
				logging.String(logging.FieldEventType, "worker_drained"),
			)
			return l.state, nil
		}

		l.process(ctx, *item)
		if !sleep(ctx, l.opts.ItemPause) {
			return l.stop()
		}
	}
}

func (l *Loop) stop() (State, error) {
	l.deps.Queue.ResetHeartbeat()
	l.state = StateStopped
	l.logger.Info("worker stopped",
		logging.Int("processed", l.stats.Processed),
		logging.String(logging.FieldEventType, "worker_stopped"),
	)
	return l.state, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
