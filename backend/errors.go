package backend

import (
	"errors"
	"io/fs"
)

var (
	// ErrNotExist is returned when the backend path does not exist.
	ErrNotExist = fs.ErrNotExist
	// ErrExist is returned by exclusive creates and renames onto an existing path.
	ErrExist = fs.ErrExist
	// ErrPermission is returned when the authenticated user may not access the path.
	ErrPermission = fs.ErrPermission
	// ErrQuotaExceeded indicates a namespace or space quota violation.
	ErrQuotaExceeded = errors.New("backend: quota exceeded")
	// ErrUnavailable indicates a transient connection or authentication failure.
	ErrUnavailable = errors.New("backend: unavailable")
	// ErrPoolExhausted indicates no connection could be leased before the acquire timeout.
	ErrPoolExhausted = &poolError{}
	// ErrClosed is returned when the pool has been closed.
	ErrClosed = errors.New("backend: pool closed")
	// ErrUnknownDriver is returned when no dialer is registered under the configured name.
	ErrUnknownDriver = errors.New("backend: unknown driver")
)

type poolError struct{}

func (e *poolError) Error() string { return "backend: connection pool exhausted" }

func (e *poolError) Unwrap() error { return ErrUnavailable }

// IsTransient reports whether err should be retried: backend unavailable, but not pool exhaustion.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrPoolExhausted)
}
