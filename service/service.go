package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/viant/omnicm/backend"
	_ "github.com/viant/omnicm/backend/afs"
	_ "github.com/viant/omnicm/backend/hdfs"
	"github.com/viant/omnicm/checkpoint"
	"github.com/viant/omnicm/contents"
	"github.com/viant/omnicm/matching"
	"github.com/viant/omnicm/matching/option"
	"github.com/viant/omnicm/resolver"
)

// Option configures the Service.
type Option func(*Service)

// WithDialer overrides the driver registry, mostly for tests.
func WithDialer(dialer backend.Dialer) Option {
	return func(s *Service) { s.dialer = dialer }
}

// Service wires a document store from Config.
type Service struct {
	config *Config
	dialer backend.Dialer
	pool   *backend.Pool
	store  *contents.Store
}

// New builds the resolver, connection pool, checkpoint manager and store described by cfg.
// Connections are dialed lazily on first use.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Service, error) {
	cfg.Init()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	r, err := resolver.New(cfg.Contents.Root)
	if err != nil {
		return nil, err
	}
	var poolOptions []backend.PoolOption
	if s.dialer != nil {
		poolOptions = append(poolOptions, backend.WithDialer(s.dialer))
	}
	s.pool = backend.NewPool(&cfg.Backend, poolOptions...)
	hidden, err := newHidden(ctx, &cfg.Contents)
	if err != nil {
		return nil, err
	}
	checkpoints := checkpoint.New(r,
		checkpoint.WithDir(cfg.Contents.CheckpointDir),
		checkpoint.WithMax(cfg.Contents.MaxCheckpoints),
	)
	s.store = contents.NewStore(s.pool, r,
		contents.WithCheckpoints(checkpoints),
		contents.WithRetry(cfg.RetryPolicy()),
		contents.WithAllowHidden(cfg.Contents.AllowHidden),
		contents.WithListCacheTTL(time.Duration(cfg.Contents.ListCacheTTLMs)*time.Millisecond),
		contents.WithHidden(hidden),
	)
	return s, nil
}

func newHidden(ctx context.Context, cfg *ContentsConfig) (*matching.Manager, error) {
	opts := []option.Option{
		option.WithExclusionPatterns(cfg.Hide...),
		option.WithMaxFileSize(cfg.MaxListedSize),
	}
	if cfg.HideFile != "" {
		data, err := afs.New().DownloadWithURL(ctx, url.Normalize(cfg.HideFile, "file"))
		if err != nil {
			return nil, fmt.Errorf("config: hide file %s: %w", cfg.HideFile, err)
		}
		opts = append(opts, option.WithIgnoreFile(bytes.NewReader(data)))
	}
	return matching.New(opts...), nil
}

// Store returns the document store.
func (s *Service) Store() *contents.Store {
	return s.store
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Reconfigure swaps backend connection parameters; live connections are replaced as they are released.
func (s *Service) Reconfigure(cfg *backend.Config) bool {
	changed := s.pool.Reconfigure(cfg)
	if changed {
		s.config.Backend = *cfg.Clone()
	}
	return changed
}

// Close releases backend connections.
func (s *Service) Close() error {
	return s.store.Close()
}
