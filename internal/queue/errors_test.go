package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFailureStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeSuccess},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), OutcomeCanceled},
		{"configuration", &ConfigurationError{Field: "path", Message: "missing"}, OutcomeError},
		{"plain", errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureStatus(tt.err); got != tt.want {
				t.Fatalf("FailureStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ConfigurationError{Message: "x"}, ErrorKindConfiguration},
		{fmt.Errorf("wrap: %w", &TransferError{Message: "expired"}), ErrorKindTransfer},
		{&ExternalToolError{Tool: "musicdownload", ExitCode: 2}, ErrorKindExternalTool},
		{&PanicError{Value: "nil map"}, ErrorKindPanic},
		{errors.New("plain"), ErrorKindUnknown},
	}
	for _, tt := range tests {
		if got := ErrorKindOf(tt.err); got != tt.want {
			t.Errorf("ErrorKindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestExternalToolErrorMessage(t *testing.T) {
	err := &ExternalToolError{Tool: "musicdownload", ExitCode: 3, Stderr: "  auth failed \n"}
	if got := err.Error(); got != "musicdownload exited with code 3: auth failed" {
		t.Fatalf("Error() = %q", got)
	}
}
