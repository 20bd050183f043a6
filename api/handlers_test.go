package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/backend/afs"
	"github.com/viant/omnicm/contents"
	"github.com/viant/omnicm/resolver"
)

const notebookJSON = `{"cells":[],"metadata":{},"nbformat":4,"nbformat_minor":5}`

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()
	r, err := resolver.New(t.TempDir())
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	store := contents.NewStore(backend.NewPool(&backend.Config{Driver: afs.Driver}), r)
	t.Cleanup(func() { _ = store.Close() })
	return New(store).Routes()
}

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	if err := json.NewDecoder(w.Body).Decode(&ret); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return ret
}

func TestHealthCheck(t *testing.T) {
	w := do(t, setupTestServer(t), "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestContents_NotebookLifecycle(t *testing.T) {
	handler := setupTestServer(t)
	body := `{"type":"notebook","content":` + notebookJSON + `}`

	if w := do(t, handler, "PUT", "/api/contents/notebooks/a.ipynb", body); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	if w := do(t, handler, "PUT", "/api/contents/notebooks/a.ipynb", body); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on overwrite, got %d: %s", w.Code, w.Body)
	}

	w := do(t, handler, "GET", "/api/contents/notebooks/a.ipynb", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d %s", w.Code, w.Body)
	}
	model := decode[map[string]any](t, w)
	if model["type"] != "notebook" || model["format"] != "json" || model["path"] != "notebooks/a.ipynb" {
		t.Fatalf("unexpected model %v", model)
	}
	if content, ok := model["content"].(map[string]any); !ok || content["nbformat"] != float64(4) {
		t.Fatalf("unexpected notebook content %v", model["content"])
	}

	w = do(t, handler, "GET", "/api/contents/notebooks", "")
	listing := decode[Model](t, w)
	entries, ok := listing.Content.([]any)
	if listing.Type != "directory" || !ok || len(entries) != 1 {
		t.Fatalf("unexpected listing %+v", listing)
	}

	w = do(t, handler, "GET", "/api/contents/notebooks/a.ipynb/checkpoints", "")
	checkpoints := decode[[]CheckpointModel](t, w)
	if len(checkpoints) != 1 || checkpoints[0].ID != "1" {
		t.Fatalf("unexpected checkpoints %+v", checkpoints)
	}
	if w = do(t, handler, "POST", "/api/contents/notebooks/a.ipynb/checkpoints", ""); w.Code != http.StatusCreated {
		t.Fatalf("create checkpoint: %d %s", w.Code, w.Body)
	}
	if w = do(t, handler, "POST", "/api/contents/notebooks/a.ipynb/checkpoints/1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("restore: %d %s", w.Code, w.Body)
	}
	if w = do(t, handler, "DELETE", "/api/contents/notebooks/a.ipynb/checkpoints/1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete checkpoint: %d %s", w.Code, w.Body)
	}
	if w = do(t, handler, "DELETE", "/api/contents/notebooks/a.ipynb/checkpoints/1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on deleted checkpoint, got %d", w.Code)
	}

	w = do(t, handler, "PATCH", "/api/contents/notebooks/a.ipynb", `{"path":"notebooks/b.ipynb"}`)
	if w.Code != http.StatusOK || decode[Model](t, w).Path != "notebooks/b.ipynb" {
		t.Fatalf("rename failed: %d", w.Code)
	}
	if w = do(t, handler, "DELETE", "/api/contents/notebooks/b.ipynb", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body)
	}
	if w = do(t, handler, "GET", "/api/contents/notebooks/b.ipynb", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestContents_Files(t *testing.T) {
	handler := setupTestServer(t)
	if w := do(t, handler, "PUT", "/api/contents/a.txt", `{"type":"file","format":"text","content":"hello"}`); w.Code != http.StatusCreated {
		t.Fatalf("put text: %d %s", w.Code, w.Body)
	}
	if w := do(t, handler, "PUT", "/api/contents/b.bin", `{"type":"file","format":"base64","content":"/wD+"}`); w.Code != http.StatusCreated {
		t.Fatalf("put base64: %d %s", w.Code, w.Body)
	}
	model := decode[Model](t, do(t, handler, "GET", "/api/contents/b.bin", ""))
	if *model.Format != "base64" || model.Content != "/wD+" || *model.Size != 3 {
		t.Fatalf("unexpected binary model %+v", model)
	}
	model = decode[Model](t, do(t, handler, "GET", "/api/contents/a.txt?content=0", ""))
	if model.Content != nil || model.Format != nil || *model.Size != 5 {
		t.Fatalf("expected metadata only model %+v", model)
	}
	model = decode[Model](t, do(t, handler, "POST", "/api/contents/", `{"type":"file","ext":".py"}`))
	if model.Path != "untitled.py" {
		t.Fatalf("unexpected untitled path %q", model.Path)
	}
	model = decode[Model](t, do(t, handler, "POST", "/api/contents/", `{"type":"file","ext":".py"}`))
	if model.Path != "untitled1.py" {
		t.Fatalf("unexpected second untitled path %q", model.Path)
	}
}

func TestContents_ErrorStatus(t *testing.T) {
	handler := setupTestServer(t)
	do(t, handler, "PUT", "/api/contents/a.txt", `{"type":"file","content":"a"}`)
	do(t, handler, "PUT", "/api/contents/b.txt", `{"type":"file","content":"b"}`)
	testCases := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{name: "missing", method: "GET", target: "/api/contents/nope", want: http.StatusNotFound},
		{name: "disallowed char", method: "GET", target: "/api/contents/a:b", want: http.StatusBadRequest},
		{name: "hidden", method: "GET", target: "/api/contents/.ssh", want: http.StatusBadRequest},
		{name: "type mismatch", method: "GET", target: "/api/contents/a.txt?type=directory", want: http.StatusBadRequest},
		{name: "rename conflict", method: "PATCH", target: "/api/contents/a.txt", body: `{"path":"b.txt"}`, want: http.StatusConflict},
		{name: "rename without body", method: "PATCH", target: "/api/contents/a.txt", body: `{}`, want: http.StatusBadRequest},
		{name: "bad json", method: "PUT", target: "/api/contents/c.txt", body: `{`, want: http.StatusBadRequest},
		{name: "bad notebook", method: "PUT", target: "/api/contents/c.ipynb", body: `{"type":"notebook","content":{"cells":[]}}`, want: http.StatusBadRequest},
		{name: "no content", method: "PUT", target: "/api/contents/c.txt", body: `{"type":"file"}`, want: http.StatusBadRequest},
		{name: "delete root", method: "DELETE", target: "/api/contents/", want: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, handler, tc.method, tc.target, tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body)
			}
			if w.Header().Get("Content-Type") != "application/json" {
				t.Fatalf("expected JSON error body")
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	if StatusOf(backend.ErrQuotaExceeded) != http.StatusInsufficientStorage {
		t.Fatalf("quota must map to 507")
	}
	if StatusOf(backend.ErrPoolExhausted) != http.StatusServiceUnavailable {
		t.Fatalf("pool exhaustion must map to 503")
	}
	if StatusOf(backend.ErrPermission) != http.StatusForbidden {
		t.Fatalf("permission must map to 403")
	}
}
