package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/backend/afs"
	"github.com/viant/omnicm/resolver"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, backend.FileSystem, string) {
	t.Helper()
	root := t.TempDir()
	r, err := resolver.New(root)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	fs := afs.New("")
	t.Cleanup(func() { _ = fs.Close() })
	return New(r, opts...), fs, root
}

func TestManager_CreateListRestore(t *testing.T) {
	ctx := context.Background()
	manager, fs, root := newTestManager(t)
	for _, content := range []string{"one", "two"} {
		if _, err := manager.Create(ctx, fs, "nb/a.ipynb", []byte(content)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "nb", DefaultDir, "a-2.ipynb")); err != nil {
		t.Fatalf("expected checkpoint file layout: %v", err)
	}
	checkpoints, err := manager.List(ctx, fs, "nb/a.ipynb")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(checkpoints) != 2 || checkpoints[0].ID != "2" || checkpoints[1].ID != "1" {
		t.Fatalf("expected newest first, got %+v", checkpoints)
	}
	if checkpoints[0].Path != "nb/a.ipynb" || checkpoints[0].Size != 3 {
		t.Fatalf("unexpected checkpoint %+v", checkpoints[0])
	}
	content, err := manager.Restore(ctx, fs, "nb/a.ipynb", "1")
	if err != nil || string(content) != "one" {
		t.Fatalf("restore: %q %v", content, err)
	}
	for _, id := range []string{"3", "0", "x", "01"} {
		if _, err = manager.Restore(ctx, fs, "nb/a.ipynb", id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("id %s: expected ErrNotFound, got %v", id, err)
		}
	}
	if _, err = manager.Create(ctx, fs, "/", []byte("x")); !errors.Is(err, resolver.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for root, got %v", err)
	}
}

func TestManager_Eviction(t *testing.T) {
	ctx := context.Background()
	manager, fs, _ := newTestManager(t, WithMax(3))
	for i := 1; i <= 7; i++ {
		if _, err := manager.Create(ctx, fs, "doc.txt", []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	checkpoints, err := manager.List(ctx, fs, "doc.txt")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, cp := range checkpoints {
		ids = append(ids, cp.ID)
	}
	if fmt.Sprint(ids) != "[7 6 5]" {
		t.Fatalf("expected newest 3 retained, got %v", ids)
	}
	content, _ := manager.Restore(ctx, fs, "doc.txt", "5")
	if string(content) != "v5" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestManager_DeleteAndRename(t *testing.T) {
	ctx := context.Background()
	manager, fs, _ := newTestManager(t, WithDir(".history"))
	for _, p := range []string{"a.txt", "a.txt", "b.txt", "b.txt", "other.txt"} {
		if _, err := manager.Create(ctx, fs, p, []byte(p)); err != nil {
			t.Fatalf("create %s: %v", p, err)
		}
	}
	if err := manager.Delete(ctx, fs, "a.txt", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := manager.Delete(ctx, fs, "a.txt", "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := manager.Rename(ctx, fs, "a.txt", "b.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	content, err := manager.Restore(ctx, fs, "b.txt", "2")
	if err != nil || string(content) != "a.txt" {
		t.Fatalf("expected migrated checkpoint 2 to replace the colliding one, got %q %v", content, err)
	}
	if left, _ := manager.List(ctx, fs, "a.txt"); len(left) != 0 {
		t.Fatalf("source checkpoints must be gone, got %+v", left)
	}
	next, err := manager.Create(ctx, fs, "b.txt", []byte("next"))
	if err != nil || next.ID != "3" {
		t.Fatalf("expected id 3 after rename, got %+v %v", next, err)
	}
	if err := manager.DeleteAll(ctx, fs, "b.txt"); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if left, _ := manager.List(ctx, fs, "b.txt"); len(left) != 0 {
		t.Fatalf("expected no checkpoints, got %+v", left)
	}
	if others, _ := manager.List(ctx, fs, "other.txt"); len(others) != 1 {
		t.Fatalf("unrelated checkpoints must survive, got %+v", others)
	}
}

func TestManager_IDsNotReused(t *testing.T) {
	ctx := context.Background()
	manager, fs, _ := newTestManager(t)
	for i := 1; i <= 3; i++ {
		if _, err := manager.Create(ctx, fs, "doc.txt", []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	for _, id := range []string{"3", "2", "1"} {
		if err := manager.Delete(ctx, fs, "doc.txt", id); err != nil {
			t.Fatalf("delete %s: %v", id, err)
		}
	}
	created, err := manager.Create(ctx, fs, "doc.txt", []byte("v4"))
	if err != nil || created.ID != "4" {
		t.Fatalf("expected id 4 after deleting all checkpoints, got %+v %v", created, err)
	}
	if _, err = manager.Restore(ctx, fs, "doc.txt", "3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted id must stay unknown, got %v", err)
	}
}

func TestManager_RenameResumes(t *testing.T) {
	ctx := context.Background()
	manager, fs, root := newTestManager(t)
	for _, content := range []string{"v1", "v2", "v3"} {
		if _, err := manager.Create(ctx, fs, "a.txt", []byte(content)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	dir := filepath.Join(root, DefaultDir)
	// a previous attempt moved checkpoint 1 before failing
	if err := os.Rename(filepath.Join(dir, "a-1.txt"), filepath.Join(dir, "b-1.txt")); err != nil {
		t.Fatalf("partial move: %v", err)
	}
	if err := manager.Rename(ctx, fs, "a.txt", "b.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	moved, err := manager.List(ctx, fs, "b.txt")
	if err != nil || len(moved) != 3 {
		t.Fatalf("expected all 3 checkpoints at destination, got %+v %v", moved, err)
	}
	content, _ := manager.Restore(ctx, fs, "b.txt", "1")
	if string(content) != "v1" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestLocation_Parse(t *testing.T) {
	loc := &location{base: "a", ext: ".ipynb"}
	testCases := []struct {
		name string
		id   int
		ok   bool
	}{
		{name: "a-1.ipynb", id: 1, ok: true},
		{name: "a-12.ipynb", id: 12, ok: true},
		{name: "a-b-1.ipynb", ok: false},
		{name: "a-.ipynb", ok: false},
		{name: "a-1.txt", ok: false},
		{name: "ab-1.ipynb", ok: false},
	}
	for _, tc := range testCases {
		id, ok := loc.parse(tc.name)
		if ok != tc.ok || id != tc.id {
			t.Fatalf("%s: got %d %v", tc.name, id, ok)
		}
	}
}
