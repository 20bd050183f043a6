package resolver

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidPath indicates a logical path that escapes the root or carries characters the backend rejects.
var ErrInvalidPath = errors.New("resolver: invalid path")

// DefaultDisallowed lists characters HDFS refuses in path components.
const DefaultDisallowed = ":"

// Resolver maps logical document paths onto absolute backend paths under a single root.
type Resolver struct {
	root       string
	disallowed string
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithDisallowed replaces the set of characters rejected in paths.
func WithDisallowed(chars string) Option {
	return func(r *Resolver) { r.disallowed = chars }
}

// New creates a resolver rooted at root.
func New(root string, opts ...Option) (*Resolver, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("resolver: root is required")
	}
	root = path.Clean("/" + strings.ReplaceAll(root, "\\", "/"))
	r := &Resolver{root: root, disallowed: DefaultDisallowed}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the absolute backend root.
func (r *Resolver) Root() string {
	return r.root
}

// Normalize resolves logical to an absolute backend path. The input is always logical: a leading
// slash is relative to root, so "/p" and "p" name the same document.
func (r *Resolver) Normalize(logical string) (string, error) {
	if err := r.validate(logical); err != nil {
		return "", err
	}
	joined := path.Clean(r.root + "/" + strings.TrimLeft(logical, "/"))
	if !r.within(joined) {
		return "", fmt.Errorf("%w: %q is outside root %s", ErrInvalidPath, logical, r.root)
	}
	return joined, nil
}

// Clean returns the canonical logical form: slash separated, no leading or trailing slash, "" for root.
func (r *Resolver) Clean(logical string) (string, error) {
	fsPath, err := r.Normalize(logical)
	if err != nil {
		return "", err
	}
	return r.Logical(fsPath), nil
}

// Logical converts a backend path under root to its logical form.
func (r *Resolver) Logical(fsPath string) string {
	fsPath = path.Clean(fsPath)
	if fsPath == r.root {
		return ""
	}
	if r.root == "/" {
		return strings.TrimPrefix(fsPath, "/")
	}
	return strings.TrimPrefix(fsPath, r.root+"/")
}

// Split returns the logical parent directory and base name of logical.
func (r *Resolver) Split(logical string) (string, string, error) {
	clean, err := r.Clean(logical)
	if err != nil {
		return "", "", err
	}
	if clean == "" {
		return "", "", nil
	}
	idx := strings.LastIndex(clean, "/")
	if idx == -1 {
		return "", clean, nil
	}
	return clean[:idx], clean[idx+1:], nil
}

// Join joins logical path elements.
func Join(elems ...string) string {
	var parts []string
	for _, elem := range elems {
		if elem = strings.Trim(elem, "/"); elem != "" {
			parts = append(parts, elem)
		}
	}
	return strings.Join(parts, "/")
}

// IsHidden reports whether any segment of logical starts with a dot.
func IsHidden(logical string) bool {
	for _, part := range strings.Split(logical, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func (r *Resolver) validate(logical string) error {
	for _, c := range logical {
		if c < 0x20 || c == 0x7f {
			return fmt.Errorf("%w: %q contains control characters", ErrInvalidPath, logical)
		}
		if strings.ContainsRune(r.disallowed, c) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidPath, logical, c)
		}
	}
	return nil
}

func (r *Resolver) within(fsPath string) bool {
	if r.root == "/" {
		return strings.HasPrefix(fsPath, "/")
	}
	return fsPath == r.root || strings.HasPrefix(fsPath, r.root+"/")
}
