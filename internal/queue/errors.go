package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClassifier allows errors to declare their classification for
// history and log reporting.
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	ErrorKind() string
}

// Error kinds reported through ErrorClassifier.
const (
	ErrorKindConfiguration = "configuration"
	ErrorKindTransfer      = "transfer"
	ErrorKindExternalTool  = "external_tool"
	ErrorKindPanic         = "panic"
	ErrorKindUnknown       = "unknown"
)

// ErrIndexOutOfRange is returned by RemoveFromQueue for a bad index.
var ErrIndexOutOfRange = errors.New("queue index out of range")

// ConfigurationError fails a single item whose inputs cannot work, such as a
// transfer without a destination path. It is never retried.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) ErrorKind() string { return ErrorKindConfiguration }

// TransferError wraps a failed stream, open, or integrity check.
type TransferError struct {
	Message string
	Err     error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) ErrorKind() string { return ErrorKindTransfer }

// ExternalToolError reports a subprocess that exited unsuccessfully.
type ExternalToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + tail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

func (e *ExternalToolError) ErrorKind() string { return ErrorKindExternalTool }

// PanicError carries a value recovered while dispatching an item.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func (e *PanicError) ErrorKind() string { return ErrorKindPanic }

// ErrorKindOf returns the classification of err, or ErrorKindUnknown.
func ErrorKindOf(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return ErrorKindUnknown
}

// FailureStatus maps a dispatch error to the history outcome the worker
// should record.
//
// A nil error is a success. Context cancellation is recorded as canceled;
// every other failure is an error.
func FailureStatus(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
