package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/fileutil"
	"courier/internal/logging"
	"courier/internal/progress"
)

// Failure messages surfaced to users.
const (
	MsgAlreadyDownloading = "Already downloading."
	MsgFileExists         = "File already exists."
	MsgErrorPage          = "Download resulted in an error page (expired link?)."
)

const (
	copyBufferSize  = 64 * 1024
	sniffLength     = 100
	defaultSampling = 500 * time.Millisecond
)

// Request describes one transfer.
type Request struct {
	URL        string
	Filename   string
	Dir        string
	DownloadID string
	Overwrite  bool
}

// Result is the outcome of a transfer. Duration is in seconds.
type Result struct {
	Success  bool
	Skipped  bool
	Message  string
	Path     string
	Size     int64
	Duration float64
	Speed    string
}

// Options configures an Engine.
type Options struct {
	Source             Source
	Progress           *progress.Tracker
	Logger             *slog.Logger
	ReentryWindow      time.Duration
	HeartbeatInterval  time.Duration
	SampleInterval     time.Duration
	IntegrityThreshold int64
	Now                func() time.Time
}

// OptionsFromConfig derives engine options, including an HTTP source, from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Source:             NewHTTPSource(cfg.Transfer.UserAgent, config.Seconds(cfg.Transfer.ConnectTimeout)),
		ReentryWindow:      config.Seconds(cfg.Transfer.ReentryWindow),
		HeartbeatInterval:  config.Seconds(cfg.Transfer.HeartbeatInterval),
		IntegrityThreshold: cfg.Transfer.IntegrityThreshold,
	}
}

// Engine performs transfers.
type Engine struct {
	source             Source
	progress           *progress.Tracker
	logger             *slog.Logger
	reentryWindow      time.Duration
	heartbeatInterval  time.Duration
	sampleInterval     time.Duration
	integrityThreshold int64
	now                func() time.Time
}

// NewEngine builds an engine. Progress is required.
func NewEngine(opts Options) *Engine {
	defaults := config.Default()
	e := &Engine{
		source:             opts.Source,
		progress:           opts.Progress,
		logger:             logging.NewComponentLogger(opts.Logger, "transfer"),
		reentryWindow:      opts.ReentryWindow,
		heartbeatInterval:  opts.HeartbeatInterval,
		sampleInterval:     opts.SampleInterval,
		integrityThreshold: opts.IntegrityThreshold,
		now:                opts.Now,
	}
	if e.source == nil {
		e.source = NewHTTPSource(defaults.Transfer.UserAgent, config.Seconds(defaults.Transfer.ConnectTimeout))
	}
	if e.reentryWindow <= 0 {
		e.reentryWindow = config.Seconds(defaults.Transfer.ReentryWindow)
	}
	if e.heartbeatInterval <= 0 {
		e.heartbeatInterval = config.Seconds(defaults.Transfer.HeartbeatInterval)
	}
	if e.sampleInterval <= 0 {
		e.sampleInterval = defaultSampling
	}
	if e.integrityThreshold <= 0 {
		e.integrityThreshold = defaults.Transfer.IntegrityThreshold
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Transfer downloads req.URL into req.Dir. heartbeat, when non-nil, is
// invoked at most once per heartbeat interval while bytes flow.
func (e *Engine) Transfer(ctx context.Context, req Request, heartbeat func()) Result {
	logger := logging.WithContext(logging.WithItem(ctx, req.DownloadID, "transfer"), e.logger)
	filename := safeFilename(req.Filename)

	if strings.TrimSpace(req.Dir) == "" {
		return e.fail(logger, req, filename, "", "Destination path not configured.")
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return e.fail(logger, req, filename, "", fmt.Sprintf("Could not create destination directory: %v", err))
	}

	if rec, ok := e.progress.Read(req.DownloadID); ok && rec.Status == progress.StatusDownloading && rec.Age(e.now()) < e.reentryWindow {
		logger.Info("transfer already in progress; skipping duplicate dispatch",
			logging.String(logging.FieldEventType, "transfer_reentry"),
		)
		return Result{Success: true, Skipped: true, Message: MsgAlreadyDownloading}
	}

	target := filepath.Join(req.Dir, filename)
	if _, err := os.Stat(target); err == nil {
		if !req.Overwrite {
			e.progress.Fail(req.DownloadID, filename, MsgFileExists)
			logger.Warn("destination exists and overwrite is disabled",
				logging.String("path", target),
				logging.String(logging.FieldEventType, "transfer_exists"),
				logging.String(logging.FieldErrorHint, "enqueue with overwrite to replace the file"),
			)
			return Result{Message: MsgFileExists, Path: target}
		}
		if err := os.Remove(target); err != nil {
			return e.fail(logger, req, filename, "", fmt.Sprintf("Could not remove existing file: %v", err))
		}
	}

	e.progress.Write(req.DownloadID, progress.Record{
		Status:   progress.StatusDownloading,
		Filename: filename,
		Speed:    FormatSpeed(0),
		Total:    -1,
	})
	logger.Info("transfer started",
		logging.String("url", req.URL),
		logging.String("path", target),
		logging.String(logging.FieldEventType, "transfer_started"),
	)

	start := e.now()
	size, err := e.stream(ctx, logger, req, filename, target, heartbeat)
	if err != nil {
		return e.fail(logger, req, filename, target, err.Error())
	}

	if size < e.integrityThreshold && looksLikeMarkup(target) {
		return e.fail(logger, req, filename, target, MsgErrorPage)
	}

	elapsed := e.now().Sub(start).Seconds()
	speed := FormatSpeed(0)
	if elapsed > 0 {
		speed = FormatSpeed(float64(size) / elapsed)
	}
	e.progress.Write(req.DownloadID, progress.Record{
		Status:     progress.StatusComplete,
		Filename:   filename,
		Percentage: 100,
		Speed:      speed,
		Downloaded: size,
		Total:      size,
	})
	logger.Info("transfer completed",
		logging.Int64("bytes", size),
		logging.Float64("seconds", round2(elapsed)),
		logging.String("speed", speed),
		logging.String(logging.FieldEventType, "transfer_completed"),
	)
	return Result{
		Success:  true,
		Path:     target,
		Size:     size,
		Duration: round2(elapsed),
		Speed:    speed,
	}
}

func (e *Engine) stream(ctx context.Context, logger *slog.Logger, req Request, filename, target string, heartbeat func()) (int64, error) {
	body, total, err := e.source.Open(ctx, req.URL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open destination: %w", err)
	}

	m := newMeter(e, req.DownloadID, filename, total, heartbeat, logger)
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			_ = out.Close()
			return written, err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				_ = out.Close()
				return written, fmt.Errorf("write destination: %w", err)
			}
			written += int64(n)
			m.observe(written, total > 0 && written >= total)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = out.Close()
			return written, fmt.Errorf("read stream: %w", readErr)
		}
	}
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("close destination: %w", err)
	}
	if total > 0 && written < total {
		return written, fmt.Errorf("stream ended early: %d of %d bytes", written, total)
	}
	m.observe(written, true)
	return written, nil
}

func (e *Engine) fail(logger *slog.Logger, req Request, filename, partial, message string) Result {
	if partial != "" {
		fileutil.RemoveQuietly(partial)
	}
	e.progress.Fail(req.DownloadID, filename, message)
	logging.WarnWithContext(logger, "transfer failed", "transfer_failed",
		logging.String("reason", message),
		logging.String(logging.FieldErrorKind, "transfer"),
	)
	return Result{Message: message}
}

// meter paces progress writes and heartbeat pings.
type meter struct {
	engine     *Engine
	downloadID string
	filename   string
	total      int64
	heartbeat  func()
	logger     *slog.Logger
	sampler    *logging.ProgressSampler

	lastSample time.Time
	lastBytes  int64
	lastBeat   time.Time
	lastSpeed  string
	finished   bool
}

func newMeter(e *Engine, downloadID, filename string, total int64, heartbeat func(), logger *slog.Logger) *meter {
	return &meter{
		engine:     e,
		downloadID: downloadID,
		filename:   filename,
		total:      total,
		heartbeat:  heartbeat,
		logger:     logger,
		sampler:    logging.NewProgressSampler(10),
		lastSample: e.now(),
		lastSpeed:  FormatSpeed(0),
	}
}

func (m *meter) observe(downloaded int64, final bool) {
	now := m.engine.now()
	if m.heartbeat != nil && (m.lastBeat.IsZero() || now.Sub(m.lastBeat) >= m.engine.heartbeatInterval) {
		m.heartbeat()
		m.lastBeat = now
	}

	if m.finished {
		return
	}
	elapsed := now.Sub(m.lastSample)
	if !final && elapsed < m.engine.sampleInterval {
		return
	}
	if secs := elapsed.Seconds(); secs > 0 {
		m.lastSpeed = FormatSpeed(float64(downloaded-m.lastBytes) / secs)
	}
	m.lastSample = now
	m.lastBytes = downloaded
	if final {
		m.finished = true
	}

	percent := -1.0
	if m.total > 0 {
		percent = round2(float64(downloaded) / float64(m.total) * 100)
	}
	m.engine.progress.Write(m.downloadID, progress.Record{
		Status:     progress.StatusDownloading,
		Filename:   m.filename,
		Percentage: max(percent, 0),
		Speed:      m.lastSpeed,
		Downloaded: downloaded,
		Total:      m.total,
	})
	if m.sampler.ShouldLog(percent) {
		m.logger.Info("transfer progress",
			logging.Float64("percent", percent),
			logging.Int64("bytes", downloaded),
			logging.String("speed", m.lastSpeed),
		)
	}
}

func safeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "download"
	}
	return base
}

func looksLikeMarkup(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, sniffLength)
	n, _ := io.ReadFull(f, head)
	lower := bytes.ToLower(head[:n])
	return bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype"))
}
