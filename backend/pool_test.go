package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

type stubFS struct {
	id     int32
	closed atomic.Bool
}

func (s *stubFS) Stat(ctx context.Context, p string) (*FileInfo, error) {
	return &FileInfo{Path: p}, nil
}
func (s *stubFS) List(ctx context.Context, p string) ([]*FileInfo, error)     { return nil, nil }
func (s *stubFS) Open(ctx context.Context, p string) (io.ReadCloser, error)   { return nil, ErrNotExist }
func (s *stubFS) Delete(ctx context.Context, p string, recursive bool) error  { return nil }
func (s *stubFS) Rename(ctx context.Context, from, to string) error           { return nil }
func (s *stubFS) Mkdir(ctx context.Context, p string, mode os.FileMode) error { return nil }
func (s *stubFS) Close() error                                                { s.closed.Store(true); return nil }
func (s *stubFS) Create(ctx context.Context, p string, mode os.FileMode, content io.Reader, exclusive bool) error {
	return nil
}

func newStubPool(cfg *Config) (*Pool, *atomic.Int32) {
	dials := &atomic.Int32{}
	pool := NewPool(cfg, WithDialer(func(ctx context.Context, cfg *Config) (FileSystem, error) {
		return &stubFS{id: dials.Add(1)}, nil
	}))
	return pool, dials
}

func TestPool_ReusesConnections(t *testing.T) {
	ctx := context.Background()
	pool, dials := newStubPool(&Config{PoolSize: 2})
	lease, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	first := lease.FileSystem
	lease.Release(nil)
	lease.Release(nil)
	lease, err = pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if lease.FileSystem != first || dials.Load() != 1 {
		t.Fatalf("expected idle connection reuse, dials=%d", dials.Load())
	}
	lease.Release(fmt.Errorf("read: %w", ErrUnavailable))
	if !first.(*stubFS).closed.Load() {
		t.Fatalf("broken connection must be closed")
	}
	lease, _ = pool.Acquire(ctx)
	if lease.FileSystem == first || dials.Load() != 2 {
		t.Fatalf("expected redial after transient failure")
	}
	lease.Release(nil)
}

func TestPool_Exhausted(t *testing.T) {
	ctx := context.Background()
	pool, _ := newStubPool(&Config{PoolSize: 1, AcquireTimeoutMs: 20})
	lease, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	started := time.Now()
	_, err = pool.Acquire(ctx)
	if !errors.Is(err, ErrPoolExhausted) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected pool exhaustion, got %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("pool exhaustion must not be retried")
	}
	if time.Since(started) < 20*time.Millisecond {
		t.Fatalf("acquire returned before timeout")
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err = pool.Acquire(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	lease.Release(nil)
	if lease, err = pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	lease.Release(nil)
}

func TestPool_Reconfigure(t *testing.T) {
	ctx := context.Background()
	pool, dials := newStubPool(&Config{Driver: "afs", BaseURL: "mem://localhost/a"})
	lease, _ := pool.Acquire(ctx)
	old := lease.FileSystem.(*stubFS)
	if pool.Reconfigure(&Config{Driver: "afs", BaseURL: "mem://localhost/a"}) {
		t.Fatalf("identical configuration must not reconnect")
	}
	if !pool.Reconfigure(&Config{Driver: "afs", BaseURL: "mem://localhost/b"}) {
		t.Fatalf("changed configuration must reconnect")
	}
	lease.Release(nil)
	if !old.closed.Load() {
		t.Fatalf("stale connection must be closed on release")
	}
	lease, _ = pool.Acquire(ctx)
	if dials.Load() != 2 || pool.Config().BaseURL != "mem://localhost/b" {
		t.Fatalf("expected fresh connection with new parameters")
	}
	lease.Release(nil)
	if err := pool.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := pool.Acquire(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDial_UnknownDriver(t *testing.T) {
	if _, err := Dial(context.Background(), &Config{Driver: "ftp"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
