package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"

	"courier/internal/fileutil"
	"courier/internal/logging"
	"courier/internal/multitrack"
	"courier/internal/notifications"
	"courier/internal/progress"
	"courier/internal/queue"
	"courier/internal/transfer"
)

const (
	activeLogName = "active_worker.log"
	streamingTag  = "STREAMING"
	logRule       = "----------------------------------------\n"
)

type outcome struct {
	status    queue.Outcome
	fileCount int
	stats     queue.Stats
}

// process runs one item and always leaves the active marker cleared.
func (l *Loop) process(ctx context.Context, item queue.Item) {
	q := l.deps.Queue
	itemCtx := logging.WithItem(ctx, item.DownloadID, string(item.Kind))
	logger := logging.WithContext(itemCtx, l.logger)
	label := kindLabel(item)

	q.SetActiveTask(item)
	l.notify(ctx, logger, notifications.Started(label, item.DisplayName()))
	logger.Info("item started",
		logging.String("filename", item.DisplayName()),
		logging.String(logging.FieldEventType, "item_started"),
	)

	result, err := l.dispatch(itemCtx, logger, item)
	l.stats.Processed++

	if err != nil {
		l.stats.Failed++
		status := queue.FailureStatus(err)
		result.stats.ErrorMessage = err.Error()
		q.RecordHistory(item, status, result.fileCount, result.stats)
		logging.ErrorWithContext(logger, "item failed", "item_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, queue.ErrorKindOf(err)),
			logging.String("status", string(status)),
		)
		l.notify(ctx, logger, notifications.Failed(label, item.DisplayName(), failureReason(err)))
	} else {
		q.RecordHistory(item, result.status, result.fileCount, result.stats)
		logger.Info("item finished",
			logging.String("status", string(result.status)),
			logging.Int("file_count", result.fileCount),
			logging.String(logging.FieldEventType, "item_finished"),
		)
		if result.status == queue.OutcomeError {
			l.stats.Failed++
			l.notify(ctx, logger, notifications.Failed(label, item.DisplayName(), result.stats.ErrorMessage))
		} else {
			l.notify(ctx, logger, notifications.Finished(label, item.DisplayName(), result.status == queue.OutcomeWarning))
		}
	}

	q.ClearActiveTask()
}

// dispatch routes item by kind. Panics are converted into errors here so a
// single item can never end the loop.
func (l *Loop) dispatch(ctx context.Context, logger *slog.Logger, item queue.Item) (result outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &queue.PanicError{Value: r}
			logger.Error("item dispatch panicked",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "item_panic"),
			)
		}
	}()

	switch item.Kind {
	case queue.KindTransfer:
		return l.runTransfer(ctx, item)
	case queue.KindMultiTrack:
		return l.runMultiTrack(ctx, logger, item)
	default:
		return outcome{}, &queue.ConfigurationError{Field: "kind", Message: fmt.Sprintf("unsupported item kind %q", item.Kind)}
	}
}

func (l *Loop) runTransfer(ctx context.Context, item queue.Item) (outcome, error) {
	if item.Transfer == nil {
		return outcome{}, &queue.ConfigurationError{Field: "transfer", Message: "transfer payload missing"}
	}
	if strings.TrimSpace(item.Path) == "" {
		return outcome{}, &queue.ConfigurationError{Field: "path", Message: "destination path not configured"}
	}
	if l.deps.Transfers == nil {
		return outcome{}, &queue.ConfigurationError{Field: "transfer", Message: "transfer engine not configured"}
	}

	res := l.deps.Transfers.Transfer(ctx, transfer.Request{
		URL:        item.URL,
		Filename:   item.Filename,
		Dir:        item.Path,
		DownloadID: item.DownloadID,
		Overwrite:  item.Overwrite(),
	}, l.deps.Queue.Beat)

	if !res.Success {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{}, fmt.Errorf("transfer interrupted: %w", ctxErr)
		}
		return outcome{}, &queue.TransferError{Message: res.Message}
	}
	fileCount := 1
	if res.Skipped {
		fileCount = 0
	}
	return outcome{
		status:    queue.OutcomeSuccess,
		fileCount: fileCount,
		stats: queue.Stats{
			Size:     res.Size,
			Speed:    res.Speed,
			Duration: res.Duration,
		},
	}, nil
}

func (l *Loop) runMultiTrack(ctx context.Context, logger *slog.Logger, item queue.Item) (outcome, error) {
	runner := l.deps.MultiTrack
	if runner == nil {
		return outcome{}, &queue.ConfigurationError{Field: "multitrack", Message: "multi-track runner not configured"}
	}
	q := l.deps.Queue
	tracker := q.Progress()
	logs := newItemLogs(l.deps.LogDir, item.DownloadID, logger)

	header := fmt.Sprintf("Executing multi-track download:\n%q ...\n%s", item.URL, logRule)
	if cli, ok := runner.(*multitrack.CLI); ok {
		logs.writeHistory([]byte(fmt.Sprintf("Executing full command:\n%s\n%s", cli.CommandLine(item.URL), logRule)))
	} else {
		logs.writeHistory([]byte(header))
	}
	logs.writeActive([]byte(header))

	var lastLine string
	err := runner.Run(ctx, item, func(chunk []byte) {
		logs.write(chunk)
		q.Beat()
		if line := fileutil.LastLine(chunk); line != "" {
			lastLine = line
			tracker.Write(item.DownloadID, progress.Record{
				Status:     progress.StatusDownloading,
				Filename:   line,
				Percentage: 100,
				Speed:      streamingTag,
			})
		}
	})
	if err != nil {
		logs.write([]byte("\n[FATAL ERROR]\n" + err.Error() + "\n"))
		tracker.Fail(item.DownloadID, item.DisplayName(), failureReason(err))
		return outcome{}, err
	}

	root := strings.TrimSpace(l.deps.MusicRoot)
	if root == "" {
		root = item.Path
	}
	logger.Info("verifying downloaded tracks", logging.String("root", root))
	verified, verr := runner.Verify(ctx, root)
	if verr != nil {
		logging.WarnWithContext(logger, "track verification failed; treating as no verified tracks", "verify_failed",
			logging.Error(verr),
			logging.String(logging.FieldErrorKind, queue.ErrorKindOf(verr)),
		)
		verified = nil
	}

	expected := item.ExpectedTracks()
	match := multitrack.Match(expected, verified)
	summary := fmt.Sprintf("Verification complete: %d/%d tracks validated. Status: %s", len(match.Matched), len(expected), match.Status)
	logs.write([]byte("\n" + summary + "\n"))
	logger.Info("verification complete",
		logging.Int("matched", len(match.Matched)),
		logging.Int("expected", len(expected)),
		logging.String("status", string(match.Status)),
	)

	if lastLine == "" {
		lastLine = item.DisplayName()
	}
	tracker.Write(item.DownloadID, progress.Record{
		Status:     progress.StatusComplete,
		Filename:   lastLine,
		Percentage: 100,
		Speed:      streamingTag,
	})

	stats := queue.Stats{DownloadedTracks: match.Matched, MissingTracks: match.Missing}
	if match.Status == queue.OutcomeError {
		stats.ErrorMessage = "none of the expected tracks were verified"
	}
	return outcome{status: match.Status, fileCount: len(match.Matched), stats: stats}, nil
}

func (l *Loop) notify(ctx context.Context, logger *slog.Logger, n notifications.Notification) {
	if err := l.deps.Notifier.Publish(ctx, n); err != nil {
		logging.WarnWithContext(logger, "notification delivery failed", "notify_failed",
			logging.String("action", n.Action),
			logging.Error(err),
		)
	}
}

func kindLabel(item queue.Item) string {
	if item.MediaType != "" {
		return string(item.MediaType)
	}
	return string(item.Kind)
}

func failureReason(err error) string {
	var transferErr *queue.TransferError
	if errors.As(err, &transferErr) {
		return transferErr.Message
	}
	var toolErr *queue.ExternalToolError
	if errors.As(err, &toolErr) {
		return fmt.Sprintf("%s exited with code %d", toolErr.Tool, toolErr.ExitCode)
	}
	return err.Error()
}

// itemLogs mirrors subprocess output into the rolling active log and the
// per-item history log.
type itemLogs struct {
	active  string
	history string
	logger  *slog.Logger
}

func newItemLogs(dir, downloadID string, logger *slog.Logger) *itemLogs {
	if strings.TrimSpace(dir) == "" {
		return &itemLogs{logger: logger}
	}
	return &itemLogs{
		active:  ActiveLogPath(dir),
		history: HistoryLogPath(dir, downloadID),
		logger:  logger,
	}
}

// HistoryLogPath returns the per-item log path under dir.
func HistoryLogPath(dir, downloadID string) string {
	return filepath.Join(dir, "history_"+downloadID+".log")
}

// ActiveLogPath returns the rolling active log path under dir.
func ActiveLogPath(dir string) string {
	return filepath.Join(dir, activeLogName)
}

func (w *itemLogs) write(data []byte) {
	w.writeActive(data)
	w.writeHistory(data)
}

func (w *itemLogs) writeActive(data []byte) {
	w.append(w.active, data)
}

func (w *itemLogs) writeHistory(data []byte) {
	w.append(w.history, data)
}

func (w *itemLogs) append(path string, data []byte) {
	if path == "" {
		return
	}
	if err := fileutil.AppendFile(path, data); err != nil {
		w.logger.Debug("append item log failed", logging.String("path", path), logging.Error(err))
	}
}
