package afs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"

	"github.com/viant/omnicm/backend"
)

// Driver is the registry name of the afs backed filesystem.
const Driver = "afs"

// DefaultBaseURL targets the local filesystem.
const DefaultBaseURL = "file://localhost"

func init() {
	backend.Register(Driver, Dial)
}

// fileSystem is a backend.FileSystem implemented using github.com/viant/afs
type fileSystem struct {
	svc     afs.Service
	baseURL string
}

// Dial constructs a FileSystem over cfg.BaseURL (file://, mem://, gs://, s3://).
func Dial(ctx context.Context, cfg *backend.Config) (backend.FileSystem, error) {
	return New(cfg.BaseURL), nil
}

// New creates a FileSystem rooted at baseURL.
func New(baseURL string) backend.FileSystem {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &fileSystem{svc: afs.New(), baseURL: strings.TrimRight(baseURL, "/")}
}

func (f *fileSystem) url(p string) string {
	return f.baseURL + "/" + strings.TrimLeft(p, "/")
}

func (f *fileSystem) Stat(ctx context.Context, p string) (*backend.FileInfo, error) {
	URL := f.url(p)
	ok, err := f.svc.Exists(ctx, URL)
	if err != nil {
		return nil, classify("stat", p, err)
	}
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: p, Err: backend.ErrNotExist}
	}
	object, err := f.svc.Object(ctx, URL)
	if err != nil {
		return nil, classify("stat", p, err)
	}
	return newFileInfo(p, object), nil
}

func (f *fileSystem) List(ctx context.Context, p string) ([]*backend.FileInfo, error) {
	info, err := f.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir {
		return nil, &os.PathError{Op: "list", Path: p, Err: errors.New("not a directory")}
	}
	URL := f.url(p)
	objects, err := f.svc.List(ctx, URL)
	if err != nil {
		return nil, classify("list", p, err)
	}
	self := strings.TrimRight(url.Path(URL), "/")
	var result []*backend.FileInfo
	for _, object := range objects {
		// afs lists the directory itself as well
		if strings.TrimRight(url.Path(object.URL()), "/") == self {
			continue
		}
		result = append(result, newFileInfo(path.Join(p, object.Name()), object))
	}
	return result, nil
}

func (f *fileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if _, err := f.Stat(ctx, p); err != nil {
		return nil, err
	}
	reader, err := f.svc.OpenURL(ctx, f.url(p))
	if err != nil {
		return nil, classify("open", p, err)
	}
	return reader, nil
}

func (f *fileSystem) Create(ctx context.Context, p string, mode os.FileMode, content io.Reader, exclusive bool) error {
	URL := f.url(p)
	if exclusive {
		ok, err := f.svc.Exists(ctx, URL)
		if err != nil {
			return classify("create", p, err)
		}
		if ok {
			return &os.PathError{Op: "create", Path: p, Err: backend.ErrExist}
		}
	}
	if mode == 0 {
		mode = file.DefaultFileOsMode
	}
	if err := f.svc.Upload(ctx, URL, mode, content); err != nil {
		return classify("create", p, err)
	}
	return nil
}

func (f *fileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	info, err := f.Stat(ctx, p)
	if err != nil {
		return err
	}
	if info.IsDir && !recursive {
		children, err := f.List(ctx, p)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return &os.PathError{Op: "delete", Path: p, Err: errors.New("directory not empty")}
		}
	}
	if err := f.svc.Delete(ctx, f.url(p)); err != nil {
		return classify("delete", p, err)
	}
	return nil
}

// Rename moves from to exactly to. afs Move may nest the source under a destination whose
// extension differs, so local paths use os.Rename and other schemes copy then delete.
func (f *fileSystem) Rename(ctx context.Context, from, to string) error {
	info, err := f.Stat(ctx, from)
	if err != nil {
		return err
	}
	source, dest := f.url(from), f.url(to)
	if url.Scheme(source, file.Scheme) == file.Scheme {
		if err = os.Rename(url.Path(source), url.Path(dest)); err != nil {
			return classify("rename", from, err)
		}
		return nil
	}
	if err = f.transfer(ctx, info, to); err != nil {
		return err
	}
	if err = f.svc.Delete(ctx, source); err != nil {
		return classify("rename", from, err)
	}
	return nil
}

func (f *fileSystem) transfer(ctx context.Context, info *backend.FileInfo, to string) error {
	if !info.IsDir {
		data, err := f.svc.DownloadWithURL(ctx, f.url(info.Path))
		if err != nil {
			return classify("rename", info.Path, err)
		}
		mode := info.Mode.Perm()
		if mode == 0 {
			mode = file.DefaultFileOsMode
		}
		if err = f.svc.Upload(ctx, f.url(to), mode, bytes.NewReader(data)); err != nil {
			return classify("rename", to, err)
		}
		return nil
	}
	if err := f.Mkdir(ctx, to, info.Mode.Perm()); err != nil {
		return err
	}
	children, err := f.List(ctx, info.Path)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err = f.transfer(ctx, child, path.Join(to, child.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (f *fileSystem) Mkdir(ctx context.Context, p string, mode os.FileMode) error {
	if info, err := f.Stat(ctx, p); err == nil {
		if !info.IsDir {
			return &os.PathError{Op: "mkdir", Path: p, Err: backend.ErrExist}
		}
		return nil
	}
	if mode == 0 {
		mode = file.DefaultDirOsMode
	}
	if err := f.svc.Create(ctx, f.url(p), mode|os.ModeDir, true); err != nil {
		return classify("mkdir", p, err)
	}
	return nil
}

func (f *fileSystem) Close() error {
	return f.svc.Close(f.baseURL)
}

func newFileInfo(p string, object storage.Object) *backend.FileInfo {
	return &backend.FileInfo{
		Name:     path.Base(p),
		Path:     p,
		IsDir:    object.IsDir(),
		Size:     object.Size(),
		Mode:     object.Mode(),
		ModTime:  object.ModTime(),
		Accessed: object.ModTime(),
	}
}

func classify(op, p string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &os.PathError{Op: op, Path: p, Err: backend.ErrNotExist}
	case errors.Is(err, os.ErrPermission):
		return &os.PathError{Op: op, Path: p, Err: backend.ErrPermission}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"):
		return &os.PathError{Op: op, Path: p, Err: backend.ErrNotExist}
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "access denied"):
		return &os.PathError{Op: op, Path: p, Err: backend.ErrPermission}
	case strings.Contains(msg, "quota"), strings.Contains(msg, "no space left"):
		return fmt.Errorf("%s %s: %w: %v", op, p, backend.ErrQuotaExceeded, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "unavailable"):
		return fmt.Errorf("%s %s: %w: %v", op, p, backend.ErrUnavailable, err)
	}
	return &os.PathError{Op: op, Path: p, Err: err}
}
