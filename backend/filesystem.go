package backend

import (
	"context"
	"io"
	"os"
	"time"
)

// FileInfo describes a backend path.
type FileInfo struct {
	Name     string
	Path     string
	IsDir    bool
	Size     int64
	Mode     os.FileMode
	ModTime  time.Time
	Accessed time.Time
}

// FileSystem is the narrow capability set a remote filesystem client must offer.
// Paths are absolute and slash separated.
type FileSystem interface {
	// Stat returns path metadata, ErrNotExist when absent.
	Stat(ctx context.Context, path string) (*FileInfo, error)
	// List returns the direct children of a directory, excluding the directory itself.
	List(ctx context.Context, path string) ([]*FileInfo, error)
	// Open opens a file for reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Create writes content to path; with exclusive set it fails with ErrExist when path exists,
	// otherwise it truncates.
	Create(ctx context.Context, path string, mode os.FileMode, content io.Reader, exclusive bool) error
	// Delete removes path; directories require recursive.
	Delete(ctx context.Context, path string, recursive bool) error
	// Rename moves from onto to, replacing an existing file at to.
	Rename(ctx context.Context, from, to string) error
	// Mkdir creates a directory and any missing parents; an existing directory is not an error.
	Mkdir(ctx context.Context, path string, mode os.FileMode) error
	// Close releases the connection.
	Close() error
}

// Dialer connects to a backend.
type Dialer func(ctx context.Context, cfg *Config) (FileSystem, error)
