package option

import (
	"bufio"
	"io"
	"strings"
)

// Options controls which directory entries are hidden from listings
type Options struct {

	// Exclusions contains patterns of files/directories to hide
	Exclusions []string

	// MaxFileSize hides files larger than this many bytes; 0 disables the check
	MaxFileSize int64
}

// NewOptions creates a new Options instance with default values
func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Exclusions == nil {
		options.Exclusions = DefaultPatterns()
	}
	return options
}

// Option is a function that modifies Options
type Option func(*Options)

// WithExclusionPatterns sets exclusion patterns
func WithExclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, patterns...)
	}
}

// WithMaxFileSize sets the maximum listed file size
func WithMaxFileSize(size int64) Option {
	return func(o *Options) {
		o.MaxFileSize = size
	}
}

// WithIgnoreFile adds patterns from a .gitignore style reader
func WithIgnoreFile(reader io.Reader) Option {
	return func(m *Options) {
		if patterns := parseIgnoreFile(reader); len(patterns) > 0 {
			m.Exclusions = append(m.Exclusions, patterns...)
		}
	}
}

// WithDefaultExclusionPatterns adds default exclusion patterns
func WithDefaultExclusionPatterns() Option {
	return func(m *Options) {
		m.Exclusions = append(m.Exclusions, DefaultPatterns()...)
	}
}

// DefaultPatterns returns entries notebook hosts conventionally hide
func DefaultPatterns() []string {
	return []string{
		"__pycache__/",
		"*.pyc",
		"*.pyo",
		".DS_Store",
		"*.so",
		"*.dylib",
		"*~",
	}
}

// parseIgnoreFile reads .gitignore-style patterns from a reader
func parseIgnoreFile(reader io.Reader) []string {
	var patterns []string
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	return patterns
}
