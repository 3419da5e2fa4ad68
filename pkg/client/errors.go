package client

import (
	"errors"
	"syscall"
)

var (
	// ErrDaemonNotRunning is returned when the daemon is not running
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the user does not have permission to perform the requested action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when 404 is returned from the daemon
	ErrNotFound = errors.New("404 not found")
)

// isConnRefused reports a socket file left behind by a daemon that is gone.
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
