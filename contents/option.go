package contents

import (
	"os"
	"time"

	"github.com/viant/omnicm/checkpoint"
	"github.com/viant/omnicm/matching"
)

const (
	defaultDirMode  = os.FileMode(0o770)
	defaultFileMode = os.FileMode(0o644)
)

// RetryPolicy bounds retries of transient backend failures.
type RetryPolicy struct {
	MaxRetries  int
	MinInterval time.Duration
	MaxInterval time.Duration
}

// DefaultRetryPolicy retries twice between 100ms and 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, MinInterval: 100 * time.Millisecond, MaxInterval: time.Second}
}

// Option configures the Store.
type Option func(*Store)

// WithCheckpoints sets the checkpoint manager.
func WithCheckpoints(manager *checkpoint.Manager) Option {
	return func(s *Store) { s.checkpoints = manager }
}

// WithRetry sets the transient failure retry policy.
func WithRetry(policy RetryPolicy) Option {
	return func(s *Store) { s.retry = policy }
}

// WithAllowHidden permits operations on dot-prefixed paths.
func WithAllowHidden(allow bool) Option {
	return func(s *Store) { s.allowHidden = allow }
}

// WithListCacheTTL caches directory listings for ttl; 0 disables caching.
func WithListCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.listTTL = ttl }
}

// WithHidden sets the listing exclusion manager.
func WithHidden(manager *matching.Manager) Option {
	return func(s *Store) { s.hidden = manager }
}

// WithModes sets permissions for created directories and files.
func WithModes(dir, file os.FileMode) Option {
	return func(s *Store) {
		if dir != 0 {
			s.dirMode = dir
		}
		if file != 0 {
			s.fileMode = file
		}
	}
}
