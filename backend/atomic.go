package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
)

const tempPrefix = ".~"

// ReadFile reads a whole file.
func ReadFile(ctx context.Context, fs FileSystem, filePath string) ([]byte, error) {
	reader, err := fs.Open(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// WriteAtomic writes content to a temporary sibling and renames it into place so readers never see
// a partial file. The temporary path is removed when any step fails.
func WriteAtomic(ctx context.Context, fs FileSystem, filePath string, mode os.FileMode, content []byte) (err error) {
	tmp := TempPath(filePath)
	if err = fs.Create(ctx, tmp, mode, bytes.NewReader(content), true); err != nil {
		cleanupTemp(fs, tmp)
		return fmt.Errorf("write %s: %w", filePath, err)
	}
	if err = fs.Rename(ctx, tmp, filePath); err != nil {
		cleanupTemp(fs, tmp)
		return fmt.Errorf("commit %s: %w", filePath, err)
	}
	return nil
}

// TempPath returns a unique hidden sibling of filePath.
func TempPath(filePath string) string {
	dir, name := path.Split(filePath)
	return dir + tempPrefix + name + "." + uuid.NewString() + ".tmp"
}

// IsTemp reports whether name was produced by TempPath.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, ".tmp")
}

func cleanupTemp(fs FileSystem, tmp string) {
	// the caller's context may already be cancelled
	if err := fs.Delete(context.Background(), tmp, false); err != nil && !errors.Is(err, ErrNotExist) {
		log.Printf("backend: remove temp %s: %v", tmp, err)
	}
}
