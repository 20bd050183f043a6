package afs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/viant/omnicm/backend"
)

func TestFileSystem(t *testing.T) {
	ctx := context.Background()
	root := filepath.ToSlash(t.TempDir())
	fs := New("")
	defer fs.Close()

	if err := fs.Mkdir(ctx, root+"/a/b", 0o770); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := fs.Mkdir(ctx, root+"/a/b", 0o770); err != nil {
		t.Fatalf("mkdir existing: %v", err)
	}
	if err := fs.Create(ctx, root+"/a/f.txt", 0o644, strings.NewReader("hello"), true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := fs.Create(ctx, root+"/a/f.txt", 0o644, strings.NewReader("again"), true); !errors.Is(err, backend.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	if err := fs.Create(ctx, root+"/a/f.txt", 0o644, strings.NewReader("world"), false); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	content, err := backend.ReadFile(ctx, fs, root+"/a/f.txt")
	if err != nil || !bytes.Equal(content, []byte("world")) {
		t.Fatalf("read: %q %v", content, err)
	}

	infos, err := fs.List(ctx, root+"/a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "b,f.txt" {
		t.Fatalf("unexpected children %v", names)
	}

	if err = fs.Delete(ctx, root+"/a", false); err == nil {
		t.Fatalf("expected non empty directory delete to fail")
	}
	if err = fs.Rename(ctx, root+"/a/f.txt", root+"/a/b/g.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err = fs.Stat(ctx, root+"/a/f.txt"); !errors.Is(err, backend.ErrNotExist) {
		t.Fatalf("expected ErrNotExist after rename, got %v", err)
	}
	info, err := fs.Stat(ctx, root+"/a/b/g.txt")
	if err != nil || info.IsDir || info.Size != 5 {
		t.Fatalf("stat renamed: %+v %v", info, err)
	}
	if err = fs.Delete(ctx, root+"/a", true); err != nil {
		t.Fatalf("recursive delete: %v", err)
	}
	if _, err = fs.Stat(ctx, root+"/a"); !errors.Is(err, backend.ErrNotExist) {
		t.Fatalf("expected ErrNotExist after delete, got %v", err)
	}
}

func TestAtomicWrite(t *testing.T) {
	ctx := context.Background()
	root := filepath.ToSlash(t.TempDir())
	fs := New("")
	target := root + "/doc.txt"
	for _, content := range []string{"v1", "v2"} {
		if err := backend.WriteAtomic(ctx, fs, target, 0o644, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", content, err)
		}
	}
	content, err := backend.ReadFile(ctx, fs, target)
	if err != nil || string(content) != "v2" {
		t.Fatalf("read: %q %v", content, err)
	}
	if stat, err := os.Stat(filepath.FromSlash(target)); err != nil || !stat.Mode().IsRegular() {
		t.Fatalf("expected regular file at %s: %v %v", target, stat, err)
	}
	infos, err := fs.List(ctx, root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, info := range infos {
		if backend.IsTemp(info.Name) {
			t.Fatalf("temp file left behind: %s", info.Name)
		}
	}
}

func TestFileSystem_RenameExactTarget(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		description string
		baseURL     string
		root        string
	}{
		{description: "local", baseURL: "", root: filepath.ToSlash(t.TempDir())},
		{description: "memory", baseURL: "mem://localhost", root: "/rename"},
	}
	for _, tc := range testCases {
		fs := New(tc.baseURL)
		renames := [][2]string{
			{tc.root + "/a.txt", tc.root + "/b.md"},
			{tc.root + "/b.md", tc.root + "/notes"},
		}
		if err := fs.Create(ctx, renames[0][0], 0o644, strings.NewReader("hello"), false); err != nil {
			t.Fatalf("%s: create: %v", tc.description, err)
		}
		for _, rename := range renames {
			if err := fs.Rename(ctx, rename[0], rename[1]); err != nil {
				t.Fatalf("%s: rename %s -> %s: %v", tc.description, rename[0], rename[1], err)
			}
			info, err := fs.Stat(ctx, rename[1])
			if err != nil || info.IsDir {
				t.Fatalf("%s: expected file at %s, got %+v %v", tc.description, rename[1], info, err)
			}
			if _, err = fs.Stat(ctx, rename[0]); !errors.Is(err, backend.ErrNotExist) {
				t.Fatalf("%s: expected %s gone, got %v", tc.description, rename[0], err)
			}
		}
		content, err := backend.ReadFile(ctx, fs, tc.root+"/notes")
		if err != nil || string(content) != "hello" {
			t.Fatalf("%s: read: %q %v", tc.description, content, err)
		}
		_ = fs.Close()
	}
}
