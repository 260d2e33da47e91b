package server

import "github.com/cockroachdb/errors"

// Sentinel errors returned by server operations. Callers match them with errors.Is.
var (
	ErrAlreadyRunning  = errors.New("server is already running")
	ErrNotRunning      = errors.New("server is not running")
	ErrJarMissing      = errors.New("can't find server.jar")
	ErrUnknownProperty = errors.New("unknown property")
	ErrInvalidValue    = errors.New("invalid property value")
)
