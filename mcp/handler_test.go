package mcp

import (
	"context"
	"testing"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/backend/afs"
	"github.com/viant/omnicm/contents"
	"github.com/viant/omnicm/resolver"
)

func TestNewHandler_RegistersTools(t *testing.T) {
	r, err := resolver.New(t.TempDir())
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	store := contents.NewStore(backend.NewPool(&backend.Config{Driver: afs.Driver, BaseURL: afs.DefaultBaseURL}), r)
	defer store.Close()
	handler, err := NewHandler(store, false)(context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	h, ok := handler.(*Handler)
	if !ok {
		t.Fatalf("unexpected handler type %T", handler)
	}
	for _, name := range []string{"get", "list", "save", "delete", "rename", "checkpoints", "restore"} {
		if _, ok := h.Registry.ToolRegistry.Get(name); !ok {
			t.Fatalf("tool %q not registered", name)
		}
	}
}
