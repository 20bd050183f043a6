package backend

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Pool leases a bounded number of backend connections. Connections are dialed lazily,
// reused after release, and redialed when the configuration changes.
type Pool struct {
	cfg     *Config
	dial    Dialer
	timeout time.Duration
	tokens  chan struct{}
	idle    []*pooled
	gen     int
	closed  bool
	mu      sync.Mutex
}

type pooled struct {
	fs  FileSystem
	gen int
}

// PoolOption configures the Pool.
type PoolOption func(*Pool)

// WithDialer overrides the registry based dialer.
func WithDialer(dialer Dialer) PoolOption {
	return func(p *Pool) { p.dial = dialer }
}

// NewPool creates a pool sized by cfg.PoolSize.
func NewPool(cfg *Config, opts ...PoolOption) *Pool {
	cfg = cfg.Clone()
	cfg.Init()
	p := &Pool{
		cfg:     cfg,
		dial:    Dial,
		timeout: cfg.AcquireTimeout(),
		tokens:  make(chan struct{}, cfg.PoolSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns a copy of the active configuration.
func (p *Pool) Config() *Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Clone()
}

// Lease is a connection checked out of the pool.
type Lease struct {
	FileSystem
	pool *Pool
	gen  int
	once sync.Once
}

// Acquire checks out a connection, waiting up to the acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %d leases busy after %s", ErrPoolExhausted, cap(p.tokens), timeout)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.tokens
		return nil, ErrClosed
	}
	for len(p.idle) > 0 {
		last := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if last.gen == p.gen {
			p.mu.Unlock()
			return &Lease{FileSystem: last.fs, pool: p, gen: last.gen}, nil
		}
		_ = last.fs.Close()
	}
	cfg, gen := p.cfg.Clone(), p.gen
	p.mu.Unlock()

	fs, err := p.dial(ctx, cfg)
	if err != nil {
		<-p.tokens
		return nil, err
	}
	return &Lease{FileSystem: fs, pool: p, gen: gen}, nil
}

// Release returns the connection to the pool. A transient err marks the connection broken and it is closed.
func (l *Lease) Release(err error) {
	l.once.Do(func() {
		l.pool.release(l, err)
	})
}

func (p *Pool) release(l *Lease, err error) {
	defer func() { <-p.tokens }()
	p.mu.Lock()
	keep := !p.closed && l.gen == p.gen && !IsTransient(err)
	if keep {
		p.idle = append(p.idle, &pooled{fs: l.FileSystem, gen: l.gen})
	}
	p.mu.Unlock()
	if !keep {
		if cErr := l.FileSystem.Close(); cErr != nil {
			log.Printf("backend: close connection: %v", cErr)
		}
	}
}

// Reconfigure swaps connection parameters; existing connections are closed as they are released.
// Pool size is fixed at creation.
func (p *Pool) Reconfigure(cfg *Config) bool {
	cfg = cfg.Clone()
	cfg.Init()
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg.PoolSize = p.cfg.PoolSize
	if p.cfg.Equal(cfg) {
		return false
	}
	p.cfg = cfg
	p.timeout = cfg.AcquireTimeout()
	p.gen++
	for _, item := range p.idle {
		_ = item.fs.Close()
	}
	p.idle = nil
	return true
}

// Close closes idle connections; leased ones are closed on release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var firstErr error
	for _, item := range p.idle {
		if err := item.fs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	return firstErr
}
