package contents

import (
	"errors"
	"fmt"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/resolver"
)

var (
	// ErrInvalidPath indicates client misuse: outside root, disallowed characters or hidden paths.
	ErrInvalidPath = resolver.ErrInvalidPath
	// ErrNotFound indicates an absent document or checkpoint.
	ErrNotFound = backend.ErrNotExist
	// ErrConflict indicates a name collision.
	ErrConflict = errors.New("contents: already exists")
	// ErrQuotaExceeded is surfaced as reported by the backend.
	ErrQuotaExceeded = backend.ErrQuotaExceeded
	// ErrUnavailable indicates a connection or authentication failure that outlived the retries.
	ErrUnavailable = backend.ErrUnavailable
	// ErrPermission indicates the backend denied access.
	ErrPermission = backend.ErrPermission
	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("contents: is a directory")
	// ErrNotDirectory is returned when a directory operation targets a file.
	ErrNotDirectory = errors.New("contents: not a directory")
	// ErrInvalidContent indicates content that cannot be decoded for the requested type or format.
	ErrInvalidContent = errors.New("contents: invalid content")
)

// PathError tags an error with the operation and logical path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("contents: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func wrap(op, p string, err error) error {
	if err == nil {
		return nil
	}
	var pathErr *PathError
	if errors.As(err, &pathErr) {
		return err
	}
	if errors.Is(err, backend.ErrExist) && !errors.Is(err, ErrConflict) {
		err = fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return &PathError{Op: op, Path: p, Err: err}
}
