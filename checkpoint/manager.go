package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/lock"
	"github.com/viant/omnicm/resolver"
)

const (
	// DefaultDir is the per-directory folder holding checkpoints.
	DefaultDir = ".ipynb_checkpoints"
	// DefaultMax bounds the checkpoints retained per document.
	DefaultMax = 5

	defaultMode      = os.FileMode(0o770)
	purgeConcurrency = 4
	markerSuffix     = ".seq"
)

// ErrNotFound is returned for unknown checkpoint ids.
var ErrNotFound = backend.ErrNotExist

// Checkpoint is an immutable snapshot of a document.
type Checkpoint struct {
	ID           string    `json:"id"`
	Path         string    `json:"-"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
}

// Manager keeps a bounded, newest-first history of document snapshots next to each document.
// It works on connections handed in by the caller.
type Manager struct {
	resolver *resolver.Resolver
	dir      string
	max      int
	mode     os.FileMode
	locks    *lock.Keyed
}

// Option configures the Manager.
type Option func(*Manager)

// WithDir sets the checkpoint folder name.
func WithDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.dir = dir
		}
	}
}

// WithMax sets the retained checkpoint count.
func WithMax(max int) Option {
	return func(m *Manager) {
		if max > 0 {
			m.max = max
		}
	}
}

// New creates a Manager resolving paths with r.
func New(r *resolver.Resolver, opts ...Option) *Manager {
	m := &Manager{resolver: r, dir: DefaultDir, max: DefaultMax, mode: defaultMode, locks: lock.New()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the checkpoint folder name.
func (m *Manager) Dir() string {
	return m.dir
}

// Max returns the retention bound.
func (m *Manager) Max() int {
	return m.max
}

type location struct {
	doc  string
	dir  string
	base string
	ext  string
}

func (m *Manager) locate(p string) (*location, error) {
	fsPath, err := m.resolver.Normalize(p)
	if err != nil {
		return nil, err
	}
	if fsPath == m.resolver.Root() {
		return nil, fmt.Errorf("%w: root has no checkpoints", resolver.ErrInvalidPath)
	}
	dir, name := path.Split(fsPath)
	ext := path.Ext(name)
	if ext == name {
		ext = ""
	}
	return &location{doc: fsPath, dir: path.Join(dir, m.dir), base: strings.TrimSuffix(name, ext), ext: ext}, nil
}

func (l *location) file(id int) string {
	return path.Join(l.dir, l.base+"-"+strconv.Itoa(id)+l.ext)
}

// marker holds the highest id ever issued so ids are not reused after deletes.
func (l *location) marker() string {
	return path.Join(l.dir, "."+l.base+l.ext+markerSuffix)
}

func (l *location) parse(name string) (int, bool) {
	prefix := l.base + "-"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, l.ext) || len(name) <= len(prefix)+len(l.ext) {
		return 0, false
	}
	mid := name[len(prefix) : len(name)-len(l.ext)]
	id, err := strconv.Atoi(mid)
	if err != nil || id <= 0 || strconv.Itoa(id) != mid {
		return 0, false
	}
	return id, true
}

type entry struct {
	id   int
	info *backend.FileInfo
}

// scan returns checkpoints oldest first.
func (m *Manager) scan(ctx context.Context, fs backend.FileSystem, loc *location) ([]entry, error) {
	infos, err := fs.List(ctx, loc.dir)
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []entry
	for _, info := range infos {
		if info.IsDir || backend.IsTemp(info.Name) {
			continue
		}
		if id, ok := loc.parse(info.Name); ok {
			entries = append(entries, entry{id: id, info: info})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries, nil
}

// last returns the highest id issued for loc, from the marker or the scanned entries.
func (m *Manager) last(ctx context.Context, fs backend.FileSystem, loc *location, entries []entry) (int, error) {
	last := 0
	if len(entries) > 0 {
		last = entries[len(entries)-1].id
	}
	data, err := backend.ReadFile(ctx, fs, loc.marker())
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return last, nil
		}
		return 0, err
	}
	if marked, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && marked > last {
		last = marked
	}
	return last, nil
}

func (m *Manager) mark(ctx context.Context, fs backend.FileSystem, loc *location, id int) error {
	return backend.WriteAtomic(ctx, fs, loc.marker(), m.mode, []byte(strconv.Itoa(id)))
}

func (m *Manager) unmark(ctx context.Context, fs backend.FileSystem, loc *location) error {
	if err := fs.Delete(ctx, loc.marker(), false); err != nil && !errors.Is(err, backend.ErrNotExist) {
		return err
	}
	return nil
}

func (m *Manager) checkpoint(loc *location, e entry) *Checkpoint {
	return &Checkpoint{
		ID:           strconv.Itoa(e.id),
		Path:         m.resolver.Logical(loc.doc),
		LastModified: e.info.ModTime,
		Size:         e.info.Size,
	}
}

// Create stores content as the newest checkpoint of p and evicts the oldest ones beyond the bound.
func (m *Manager) Create(ctx context.Context, fs backend.FileSystem, p string, content []byte) (*Checkpoint, error) {
	loc, err := m.locate(p)
	if err != nil {
		return nil, err
	}
	defer m.locks.Lock(loc.doc)()
	entries, err := m.scan(ctx, fs, loc)
	if err != nil {
		return nil, err
	}
	last, err := m.last(ctx, fs, loc, entries)
	if err != nil {
		return nil, err
	}
	id := last + 1
	if err = fs.Mkdir(ctx, loc.dir, m.mode); err != nil {
		return nil, err
	}
	target := loc.file(id)
	if err = backend.WriteAtomic(ctx, fs, target, m.mode, content); err != nil {
		return nil, err
	}
	if err = m.mark(ctx, fs, loc, id); err != nil {
		return nil, err
	}
	info, err := fs.Stat(ctx, target)
	if err != nil {
		return nil, err
	}
	entries = append(entries, entry{id: id, info: info})
	for len(entries) > m.max {
		oldest := entries[0]
		if err = fs.Delete(ctx, oldest.info.Path, false); err != nil && !errors.Is(err, backend.ErrNotExist) {
			return nil, err
		}
		log.Printf("checkpoint: evicted %s@%d", m.resolver.Logical(loc.doc), oldest.id)
		entries = entries[1:]
	}
	return m.checkpoint(loc, entries[len(entries)-1]), nil
}

// List returns the checkpoints of p, newest first.
func (m *Manager) List(ctx context.Context, fs backend.FileSystem, p string) ([]*Checkpoint, error) {
	loc, err := m.locate(p)
	if err != nil {
		return nil, err
	}
	entries, err := m.scan(ctx, fs, loc)
	if err != nil {
		return nil, err
	}
	result := make([]*Checkpoint, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		result = append(result, m.checkpoint(loc, entries[i]))
	}
	return result, nil
}

// Restore returns the content of checkpoint id. Writing it back is up to the caller.
func (m *Manager) Restore(ctx context.Context, fs backend.FileSystem, p, id string) ([]byte, error) {
	loc, file, err := m.lookup(ctx, fs, p, id)
	if err != nil {
		return nil, err
	}
	defer m.locks.Lock(loc.doc)()
	content, err := backend.ReadFile(ctx, fs, file)
	if errors.Is(err, backend.ErrNotExist) {
		return nil, fmt.Errorf("%w: checkpoint %s@%s", ErrNotFound, p, id)
	}
	return content, err
}

// Delete removes a single checkpoint.
func (m *Manager) Delete(ctx context.Context, fs backend.FileSystem, p, id string) error {
	loc, file, err := m.lookup(ctx, fs, p, id)
	if err != nil {
		return err
	}
	defer m.locks.Lock(loc.doc)()
	log.Printf("checkpoint: removing %s@%s", p, id)
	if err = fs.Delete(ctx, file, false); errors.Is(err, backend.ErrNotExist) {
		return fmt.Errorf("%w: checkpoint %s@%s", ErrNotFound, p, id)
	}
	return err
}

func (m *Manager) lookup(ctx context.Context, fs backend.FileSystem, p, id string) (*location, string, error) {
	loc, err := m.locate(p)
	if err != nil {
		return nil, "", err
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 || strconv.Itoa(n) != id {
		return nil, "", fmt.Errorf("%w: checkpoint %s@%s", ErrNotFound, p, id)
	}
	file := loc.file(n)
	if _, err = fs.Stat(ctx, file); err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: checkpoint %s@%s", ErrNotFound, p, id)
		}
		return nil, "", err
	}
	return loc, file, nil
}

// DeleteAll removes every checkpoint of p.
func (m *Manager) DeleteAll(ctx context.Context, fs backend.FileSystem, p string) error {
	loc, err := m.locate(p)
	if err != nil {
		return err
	}
	defer m.locks.Lock(loc.doc)()
	entries, err := m.scan(ctx, fs, loc)
	if err != nil {
		return err
	}
	if err = m.purge(ctx, fs, entries); err != nil {
		return err
	}
	return m.unmark(ctx, fs, loc)
}

func (m *Manager) purge(ctx context.Context, fs backend.FileSystem, entries []entry) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(purgeConcurrency)
	for _, e := range entries {
		filePath := e.info.Path
		group.Go(func() error {
			if err := fs.Delete(gctx, filePath, false); err != nil && !errors.Is(err, backend.ErrNotExist) {
				return err
			}
			return nil
		})
	}
	return group.Wait()
}

// Rename moves all checkpoints of from under the namespace of to. Destination checkpoints with
// colliding ids are replaced; a partially completed rename can be repeated.
func (m *Manager) Rename(ctx context.Context, fs backend.FileSystem, from, to string) error {
	src, err := m.locate(from)
	if err != nil {
		return err
	}
	dst, err := m.locate(to)
	if err != nil {
		return err
	}
	defer m.locks.Lock(src.doc, dst.doc)()
	entries, err := m.scan(ctx, fs, src)
	if err != nil {
		return err
	}
	last, err := m.last(ctx, fs, src, entries)
	if err != nil || last == 0 {
		return err
	}
	existing, err := m.scan(ctx, fs, dst)
	if err != nil {
		return err
	}
	moving := make(map[int]bool, len(entries))
	for _, e := range entries {
		moving[e.id] = true
	}
	var stale []entry
	for _, e := range existing {
		if moving[e.id] {
			stale = append(stale, e)
		}
	}
	if err = m.purge(ctx, fs, stale); err != nil {
		return err
	}
	if err = fs.Mkdir(ctx, dst.dir, m.mode); err != nil {
		return err
	}
	for _, e := range entries {
		log.Printf("checkpoint: renaming %s -> %s", e.info.Path, dst.file(e.id))
		if err = fs.Rename(ctx, e.info.Path, dst.file(e.id)); err != nil {
			return err
		}
	}
	dstLast, err := m.last(ctx, fs, dst, existing)
	if err != nil {
		return err
	}
	if err = m.mark(ctx, fs, dst, max(last, dstLast)); err != nil {
		return err
	}
	return m.unmark(ctx, fs, src)
}
