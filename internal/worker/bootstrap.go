package worker

import (
	"log/slog"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/multitrack"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/spawn"
	"courier/internal/storage"
	"courier/internal/transfer"
)

// NewQueueManager builds the queue manager producers and the worker share.
// An unresolvable worker binary is logged; enqueues still persist and the
// next process that can launch a worker will.
func NewQueueManager(cfg *config.Config, store *storage.Store, logger *slog.Logger) *queue.Manager {
	opts := queue.OptionsFromConfig(cfg)
	opts.Logger = logger
	launcher, err := spawn.NewProcessLauncher(cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "worker binary unavailable; items will wait for a worker", "worker_unresolved",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set [worker].binary or install courierd on PATH"),
		)
	} else {
		opts.Launcher = launcher
	}
	return queue.NewManager(store, opts)
}

// NewFromConfig wires a Loop over mgr with the HTTP transfer engine, the
// configured multi-track CLI, and the notification feed plus optional push.
func NewFromConfig(cfg *config.Config, mgr *queue.Manager, logger *slog.Logger) *Loop {
	engineOpts := transfer.OptionsFromConfig(cfg)
	engineOpts.Progress = mgr.Progress()
	engineOpts.Logger = logger

	return New(Dependencies{
		Queue:      mgr,
		Transfers:  transfer.NewEngine(engineOpts),
		MultiTrack: multitrack.NewCLI(cfg.MultiTrack),
		Notifier: notifications.Multi{
			notifications.NewFeed(mgr.Store()),
			notifications.NewService(cfg),
		},
		Logger:    logger,
		LogDir:    cfg.ItemLogDir(),
		MusicRoot: cfg.MultiTrack.RootPath,
	}, OptionsFromConfig(cfg))
}
