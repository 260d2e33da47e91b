// Package apperrors holds the error types shared across lodestone and the
// mapping from errors to process exit statuses.
//
// ConfigError reports bad user configuration. ServerError names the managed
// server and operation behind a failure, and TimeoutError reports an
// operation that ran past its limit. Types carrying a cause implement Unwrap,
// so errors.Is and errors.As see through them. ExitCode is the single place
// where errors become exit statuses.
package apperrors
