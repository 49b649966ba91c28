package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDownloadID is the standardized structured logging key for queue item identifiers.
	FieldDownloadID = "download_id"
	// FieldKind is the standardized structured logging key for queue item kinds.
	FieldKind = "kind"
	// FieldEventType classifies a log line for filtering (e.g. item_failed).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the error taxonomy bucket of a failure.
	FieldErrorKind = "error_kind"
)

type contextKey int

const (
	downloadIDKey contextKey = iota
	kindKey
)

// WithItem returns a context tagged with the queue item being processed.
func WithItem(ctx context.Context, downloadID, kind string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := strings.TrimSpace(downloadID); id != "" {
		ctx = context.WithValue(ctx, downloadIDKey, id)
	}
	if k := strings.TrimSpace(kind); k != "" {
		ctx = context.WithValue(ctx, kindKey, k)
	}
	return ctx
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := ctx.Value(downloadIDKey).(string); ok {
		fields = append(fields, slog.String(FieldDownloadID, id))
	}
	if kind, ok := ctx.Value(kindKey).(string); ok {
		fields = append(fields, slog.String(FieldKind, kind))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, field := range fields {
		args[i] = field
	}
	return logger.With(args...)
}
