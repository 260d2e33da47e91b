package apperrors

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Process exit statuses of lodestone.
const (
	ExitSuccess       = 0   // Indicates successful execution.
	ExitErrorGeneric  = 1   // Indicates a generic error.
	ExitErrorTimeout  = 2   // Indicates an operation timed out.
	ExitErrorConfig   = 4   // Indicates a configuration error.
	ExitErrorCanceled = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError is an invalid flag, environment variable or lodestone.toml
// value. It maps to ExitErrorConfig.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// ServerError attaches the name of a managed server and the operation that
// failed to an underlying cause.
type ServerError struct {
	// Server is the name of the managed server.
	Server string
	// Op is the operation that failed ("start", "stop", "create", ...).
	Op string
	// Cause is the underlying error.
	Cause error
}

// Error returns a message of the form "<op> <server>: <cause>".
//
// Returns:
//   - string: The error message string.
func (e ServerError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Server, e.Cause)
}

// Unwrap returns the cause.
func (e ServerError) Unwrap() error { return e.Cause }

// TimeoutError is an operation that did not finish within Limit, such as a
// scheduled backup of a server that stopped answering.
type TimeoutError struct {
	// Operation is the name of the operation that timed out.
	Operation string
	// Limit is the duration after which the operation was considered timed out.
	Limit time.Duration
}

// Error returns a formatted message describing the timeout.
//
// Returns:
//   - string: The error message string.
func (e TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Operation, e.Limit)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
//
// Parameters:
//   - err: The error to check.
//
// Returns:
//   - bool: true if the error is a context error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCode maps an error to the process exit status.
//
// Parameters:
//   - err: The error returned by the application, possibly nil.
//
// Returns:
//   - int: One of the Exit* constants.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return ExitErrorConfig
	}
	var timeoutErr TimeoutError
	if errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded) {
		return ExitErrorTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ExitErrorCanceled
	}
	return ExitErrorGeneric
}
