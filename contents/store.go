package contents

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"log"
	"os"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lestrrat-go/backoff/v2"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/cache"
	"github.com/viant/omnicm/checkpoint"
	"github.com/viant/omnicm/lock"
	"github.com/viant/omnicm/matching"
	"github.com/viant/omnicm/resolver"
)

// Contents is the capability set a host adapter consumes.
type Contents interface {
	Get(ctx context.Context, p string, opts GetOptions) (*Document, error)
	List(ctx context.Context, dir string) (iter.Seq[*Document], error)
	Save(ctx context.Context, p string, req SaveRequest) (*Document, error)
	Delete(ctx context.Context, p string) error
	Rename(ctx context.Context, from, to string) (*Document, error)
	Exists(ctx context.Context, p string) bool
}

// GetOptions controls Get.
type GetOptions struct {
	// Content loads file bytes, parsed notebooks or directory entries.
	Content bool
	// Type, when set, must match the stored kind.
	Type Type
	// Format selects text or base64 presentation of plain files.
	Format Format
}

// SaveRequest carries the document to store. Notebook content is JSON. File content is raw bytes
// unless Format is base64, in which case it is decoded first.
type SaveRequest struct {
	Type    Type
	Format  Format
	Content []byte
}

// Store maps documents onto a remote filesystem under a single root.
type Store struct {
	pool        *backend.Pool
	resolver    *resolver.Resolver
	checkpoints *checkpoint.Manager
	retry       RetryPolicy
	allowHidden bool
	hidden      *matching.Manager
	listTTL     time.Duration
	listings    *cache.Map[string, []*backend.FileInfo]
	locks       *lock.Keyed
	dirMode     os.FileMode
	fileMode    os.FileMode
}

var _ Contents = (*Store)(nil)

// NewStore creates a Store; the store owns pool and closes it on Close.
func NewStore(pool *backend.Pool, r *resolver.Resolver, opts ...Option) *Store {
	s := &Store{
		pool:     pool,
		resolver: r,
		retry:    DefaultRetryPolicy(),
		locks:    lock.New(),
		dirMode:  defaultDirMode,
		fileMode: defaultFileMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checkpoints == nil {
		s.checkpoints = checkpoint.New(r)
	}
	if s.hidden == nil {
		s.hidden = matching.New()
	}
	if s.listTTL > 0 {
		s.listings = cache.NewMap[string, []*backend.FileInfo](s.listTTL)
	}
	return s
}

// Root returns the backend root directory.
func (s *Store) Root() string {
	return s.resolver.Root()
}

// Checkpoints returns the checkpoint manager.
func (s *Store) Checkpoints() *checkpoint.Manager {
	return s.checkpoints
}

// Close releases backend connections.
func (s *Store) Close() error {
	return s.pool.Close()
}

// resolve validates p and returns its logical and backend forms.
func (s *Store) resolve(op, p string) (string, string, error) {
	logical, err := s.resolver.Clean(p)
	if err != nil {
		return "", "", wrap(op, p, err)
	}
	if !s.allowHidden && resolver.IsHidden(logical) {
		return "", "", wrap(op, p, fmt.Errorf("%w: hidden path", ErrInvalidPath))
	}
	fsPath, err := s.resolver.Normalize(logical)
	if err != nil {
		return "", "", wrap(op, p, err)
	}
	return logical, fsPath, nil
}

// withBackend runs fn on a leased connection, retrying transient failures with exponential backoff.
func (s *Store) withBackend(ctx context.Context, fn func(fs backend.FileSystem) error) error {
	attempt := func() error {
		lease, err := s.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		err = fn(lease)
		lease.Release(err)
		return err
	}
	if s.retry.MaxRetries <= 0 {
		return attempt()
	}
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	policy := backoff.Exponential(
		backoff.WithMinInterval(s.retry.MinInterval),
		backoff.WithMaxInterval(s.retry.MaxInterval),
		backoff.WithJitterFactor(0.05),
		backoff.WithMaxRetries(s.retry.MaxRetries),
	)
	controller := policy.Start(rctx)
	var err error
	attempts := 0
	for backoff.Continue(controller) {
		attempts++
		if err = attempt(); err == nil || !backend.IsTransient(err) {
			return err
		}
		log.Printf("contents: transient backend failure (attempt %d): %v", attempts, err)
	}
	if attempts == 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return attempt()
	}
	return err
}

// Get returns the document at p.
func (s *Store) Get(ctx context.Context, p string, opts GetOptions) (*Document, error) {
	logical, fsPath, err := s.resolve("get", p)
	if err != nil {
		return nil, err
	}
	defer s.locks.Lock(fsPath)()
	var doc *Document
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		info, err := fs.Stat(ctx, fsPath)
		if err != nil {
			return err
		}
		typ, err := resolveType(info, opts.Type)
		if err != nil {
			return err
		}
		doc = newDocument(logical, info, typ)
		if !opts.Content {
			return nil
		}
		switch typ {
		case TypeDirectory:
			entries, err := s.entries(ctx, fs, logical, fsPath)
			if err != nil {
				return err
			}
			doc.Entries = entries
			doc.Format = FormatJSON
			doc.ContentLoaded = true
		case TypeNotebook:
			content, err := backend.ReadFile(ctx, fs, fsPath)
			if err != nil {
				return err
			}
			if doc.Notebook, err = ParseNotebook(content); err != nil {
				return err
			}
			doc.Format = FormatJSON
			doc.setContent(content)
		default:
			content, err := backend.ReadFile(ctx, fs, fsPath)
			if err != nil {
				return err
			}
			if err = doc.setFileContent(content, opts.Format); err != nil {
				return fmt.Errorf("%w: cannot present as %q", err, opts.Format)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap("get", logical, err)
	}
	return doc, nil
}

func resolveType(info *backend.FileInfo, requested Type) (Type, error) {
	inferred := typeOf(info)
	switch requested {
	case "":
		return inferred, nil
	case TypeDirectory:
		if !info.IsDir {
			return "", ErrNotDirectory
		}
		return TypeDirectory, nil
	case TypeFile, TypeNotebook:
		if info.IsDir {
			return "", ErrIsDirectory
		}
		return requested, nil
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidContent, requested)
}

// List returns directory entries sorted by name, metadata only. The sequence iterates a snapshot
// taken at call time and can be ranged over repeatedly.
func (s *Store) List(ctx context.Context, dir string) (iter.Seq[*Document], error) {
	logical, fsPath, err := s.resolve("list", dir)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(fsPath)
	var entries []*Document
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		info, err := fs.Stat(ctx, fsPath)
		if err != nil {
			return err
		}
		if !info.IsDir {
			return ErrNotDirectory
		}
		entries, err = s.entries(ctx, fs, logical, fsPath)
		return err
	})
	unlock()
	if err != nil {
		return nil, wrap("list", logical, err)
	}
	return func(yield func(*Document) bool) {
		for _, entry := range entries {
			clone := *entry
			if !yield(&clone) {
				return
			}
		}
	}, nil
}

func (s *Store) entries(ctx context.Context, fs backend.FileSystem, logical, fsPath string) ([]*Document, error) {
	infos, err := s.listDir(ctx, fs, fsPath)
	if err != nil {
		return nil, err
	}
	result := make([]*Document, 0, len(infos))
	for _, info := range infos {
		child := resolver.Join(logical, info.Name)
		if !s.listable(child, info) {
			continue
		}
		result = append(result, newDocument(child, info, typeOf(info)))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) listable(logical string, info *backend.FileInfo) bool {
	if backend.IsTemp(info.Name) || info.Name == s.checkpoints.Dir() {
		return false
	}
	if !s.allowHidden && strings.HasPrefix(info.Name, ".") {
		return false
	}
	return !s.hidden.IsExcluded(logical, info.IsDir, info.Size)
}

func (s *Store) listDir(ctx context.Context, fs backend.FileSystem, fsPath string) ([]*backend.FileInfo, error) {
	if s.listings != nil {
		if cached, ok := s.listings.Get(fsPath); ok {
			return *cached, nil
		}
	}
	infos, err := fs.List(ctx, fsPath)
	if err != nil {
		return nil, err
	}
	if s.listings != nil {
		s.listings.Set(fsPath, &infos)
	}
	return infos, nil
}

// invalidate drops cached listings of the parents of the given backend paths and of their subtrees.
func (s *Store) invalidate(fsPaths ...string) {
	if s.listings == nil {
		return
	}
	for _, fsPath := range fsPaths {
		s.listings.Delete(path.Dir(fsPath))
		cache.DeletePrefix(s.listings, fsPath)
	}
}

// Save stores a document. An existing file is snapshotted as a checkpoint before being replaced.
func (s *Store) Save(ctx context.Context, p string, req SaveRequest) (*Document, error) {
	logical, fsPath, err := s.resolve("save", p)
	if err != nil {
		return nil, err
	}
	if logical == "" {
		return nil, wrap("save", p, fmt.Errorf("%w: cannot save root", ErrInvalidPath))
	}
	content := req.Content
	switch req.Type {
	case TypeDirectory:
	case TypeNotebook:
		nb, err := ParseNotebook(content)
		if err != nil {
			return nil, wrap("save", logical, err)
		}
		if content, err = nb.Marshal(); err != nil {
			return nil, wrap("save", logical, err)
		}
	case TypeFile:
		if content, err = decodeFile(req.Content, req.Format); err != nil {
			return nil, wrap("save", logical, err)
		}
	case "":
		return nil, wrap("save", logical, fmt.Errorf("%w: no type provided", ErrInvalidContent))
	default:
		return nil, wrap("save", logical, fmt.Errorf("%w: unhandled type %q", ErrInvalidContent, req.Type))
	}
	defer s.locks.Lock(fsPath)()
	defer s.invalidate(fsPath)
	var doc *Document
	checkpointed, made := false, false
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		if req.Type == TypeDirectory {
			if !made {
				if err := s.mkdir(ctx, fs, fsPath); err != nil {
					return err
				}
				made = true
			}
		} else if err := s.write(ctx, fs, logical, fsPath, content, &checkpointed); err != nil {
			return err
		}
		info, err := fs.Stat(ctx, fsPath)
		if err != nil {
			return err
		}
		doc = newDocument(logical, info, req.Type)
		return nil
	})
	if err != nil {
		return nil, wrap("save", logical, err)
	}
	return doc, nil
}

func decodeFile(content []byte, format Format) ([]byte, error) {
	switch format {
	case "", FormatText:
		if !utf8.Valid(content) && format == FormatText {
			return nil, fmt.Errorf("%w: text content is not valid UTF-8", ErrInvalidContent)
		}
		return content, nil
	case FormatBase64:
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(content)))
		n, err := base64.StdEncoding.Decode(decoded, content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		return decoded[:n], nil
	}
	return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidContent, format)
}

func (s *Store) mkdir(ctx context.Context, fs backend.FileSystem, fsPath string) error {
	info, err := fs.Stat(ctx, fsPath)
	switch {
	case err == nil && !info.IsDir:
		return ErrNotDirectory
	case err == nil:
		return fmt.Errorf("%w: directory exists", ErrConflict)
	case !errors.Is(err, backend.ErrNotExist):
		return err
	}
	return fs.Mkdir(ctx, fsPath, s.dirMode)
}

// write replaces fsPath atomically; the prior version, if any, becomes a checkpoint once per call.
func (s *Store) write(ctx context.Context, fs backend.FileSystem, logical, fsPath string, content []byte, checkpointed *bool) error {
	info, err := fs.Stat(ctx, fsPath)
	switch {
	case err == nil && info.IsDir:
		return ErrIsDirectory
	case err == nil && !*checkpointed:
		prior, err := backend.ReadFile(ctx, fs, fsPath)
		if err != nil {
			return err
		}
		if _, err = s.checkpoints.Create(ctx, fs, logical, prior); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		*checkpointed = true
	case err != nil && !errors.Is(err, backend.ErrNotExist):
		return err
	case err != nil:
		if err := s.ensureParent(ctx, fs, fsPath); err != nil {
			return err
		}
	}
	return backend.WriteAtomic(ctx, fs, fsPath, s.fileMode, content)
}

// ensureParent creates the missing ancestors of fsPath and drops the cached listings they change.
func (s *Store) ensureParent(ctx context.Context, fs backend.FileSystem, fsPath string) error {
	parent := path.Dir(fsPath)
	info, err := fs.Stat(ctx, parent)
	switch {
	case err == nil && !info.IsDir:
		return fmt.Errorf("%w: parent %s", ErrNotDirectory, s.resolver.Logical(parent))
	case err == nil:
		return nil
	case !errors.Is(err, backend.ErrNotExist):
		return err
	}
	top := parent
	for up := path.Dir(top); up != top && strings.HasPrefix(up, s.resolver.Root()); up = path.Dir(top) {
		if _, err = fs.Stat(ctx, up); err == nil {
			break
		} else if !errors.Is(err, backend.ErrNotExist) {
			return err
		}
		top = up
	}
	if err = fs.Mkdir(ctx, parent, s.dirMode); err != nil {
		return err
	}
	s.invalidate(top)
	return nil
}

// Delete removes a document; directories are removed recursively together with contained checkpoints.
func (s *Store) Delete(ctx context.Context, p string) error {
	logical, fsPath, err := s.resolve("delete", p)
	if err != nil {
		return err
	}
	if logical == "" {
		return wrap("delete", p, fmt.Errorf("%w: cannot delete root", ErrInvalidPath))
	}
	defer s.locks.Lock(fsPath)()
	defer s.invalidate(fsPath)
	// once the document is gone a retry only finishes the checkpoint purge
	removed := false
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		if !removed {
			info, err := fs.Stat(ctx, fsPath)
			if err != nil {
				return err
			}
			if info.IsDir {
				return fs.Delete(ctx, fsPath, true)
			}
			if err = fs.Delete(ctx, fsPath, false); err != nil {
				return err
			}
			removed = true
		}
		return s.checkpoints.DeleteAll(ctx, fs, logical)
	})
	return wrap("delete", logical, err)
}

// Rename moves a document, migrating its checkpoints. Fails with ErrConflict when to exists.
func (s *Store) Rename(ctx context.Context, from, to string) (*Document, error) {
	oldLogical, oldPath, err := s.resolve("rename", from)
	if err != nil {
		return nil, err
	}
	newLogical, newPath, err := s.resolve("rename", to)
	if err != nil {
		return nil, err
	}
	if oldLogical == "" || newLogical == "" {
		return nil, wrap("rename", from, fmt.Errorf("%w: cannot rename root", ErrInvalidPath))
	}
	if strings.HasPrefix(newPath, oldPath+"/") {
		return nil, wrap("rename", from, fmt.Errorf("%w: cannot move %s into itself", ErrInvalidPath, oldLogical))
	}
	defer s.locks.Lock(oldPath, newPath)()
	defer s.invalidate(oldPath, newPath)
	var doc *Document
	// moved marks the document as committed at newPath so a retry only finishes the checkpoint migration
	moved, isDir := false, false
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		if !moved {
			info, err := fs.Stat(ctx, oldPath)
			if err != nil {
				return err
			}
			if oldPath == newPath {
				doc = newDocument(newLogical, info, typeOf(info))
				return nil
			}
			if _, err = fs.Stat(ctx, newPath); err == nil {
				return fmt.Errorf("%w: %s", ErrConflict, newLogical)
			} else if !errors.Is(err, backend.ErrNotExist) {
				return err
			}
			if err = s.ensureParent(ctx, fs, newPath); err != nil {
				return err
			}
			if err = fs.Rename(ctx, oldPath, newPath); err != nil {
				return err
			}
			moved, isDir = true, info.IsDir
		}
		if !isDir {
			if err := s.checkpoints.Rename(ctx, fs, oldLogical, newLogical); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
		}
		info, err := fs.Stat(ctx, newPath)
		if err != nil {
			return err
		}
		doc = newDocument(newLogical, info, typeOf(info))
		return nil
	})
	if err != nil {
		return nil, wrap("rename", oldLogical, err)
	}
	return doc, nil
}

// Exists reports whether p exists; it never fails.
func (s *Store) Exists(ctx context.Context, p string) bool {
	info, err := s.stat(ctx, p)
	return err == nil && info != nil
}

// FileExists reports whether p is an existing file.
func (s *Store) FileExists(ctx context.Context, p string) bool {
	info, err := s.stat(ctx, p)
	return err == nil && !info.IsDir
}

// DirExists reports whether p is an existing directory.
func (s *Store) DirExists(ctx context.Context, p string) bool {
	info, err := s.stat(ctx, p)
	return err == nil && info.IsDir
}

func (s *Store) stat(ctx context.Context, p string) (*backend.FileInfo, error) {
	_, fsPath, err := s.resolve("stat", p)
	if err != nil {
		return nil, err
	}
	var info *backend.FileInfo
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		info, err = fs.Stat(ctx, fsPath)
		return err
	})
	return info, err
}
