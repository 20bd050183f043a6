package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/viant/omnicm/checkpoint"
	"github.com/viant/omnicm/contents"
)

const checkpointsSegment = "checkpoints"

// Store is the capability set the REST handlers consume.
type Store interface {
	contents.Contents
	CreateCheckpoint(ctx context.Context, p string) (*checkpoint.Checkpoint, error)
	ListCheckpoints(ctx context.Context, p string) ([]*checkpoint.Checkpoint, error)
	RestoreCheckpoint(ctx context.Context, p, id string) (*contents.Document, error)
	DeleteCheckpoint(ctx context.Context, p, id string) error
}

// Server holds the HTTP server dependencies
type Server struct {
	store Store
}

// New creates a new API server
func New(store Store) *Server {
	return &Server{store: store}
}

// Routes returns the contents API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.HealthCheck)
	r.Route("/api/contents", func(r chi.Router) {
		r.Get("/", s.Get)
		r.Get("/*", s.Get)
		r.Put("/*", s.Save)
		r.Post("/", s.Post)
		r.Post("/*", s.Post)
		r.Patch("/*", s.Rename)
		r.Delete("/*", s.Delete)
	})
	return r
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Get handles GET /api/contents/{path}
// Supports query params: ?content=0|1, ?type=file|directory|notebook, ?format=text|base64
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	p := pathParam(r)
	if doc, ok := checkpointTarget(p); ok {
		s.listCheckpoints(w, r, doc)
		return
	}
	query := r.URL.Query()
	opts := contents.GetOptions{
		Content: query.Get("content") != "0",
		Type:    contents.Type(query.Get("type")),
		Format:  contents.Format(query.Get("format")),
	}
	doc, err := s.store.Get(r.Context(), p, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewModel(doc))
}

// Save handles PUT /api/contents/{path}
// Responds 201 when the document did not exist before.
func (s *Server) Save(w http.ResponseWriter, r *http.Request) {
	p := pathParam(r)
	var body SaveModel
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", contents.ErrInvalidContent, err))
		return
	}
	req, err := body.Request()
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !s.store.Exists(r.Context(), p) {
		status = http.StatusCreated
	}
	doc, err := s.store.Save(r.Context(), p, req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/contents/"+doc.Path)
	writeJSON(w, status, NewModel(doc))
}

// Post handles POST /api/contents/{dir} creating an untitled document, and the checkpoint
// actions POST {path}/checkpoints and POST {path}/checkpoints/{id}.
func (s *Server) Post(w http.ResponseWriter, r *http.Request) {
	p := pathParam(r)
	if doc, ok := checkpointTarget(p); ok {
		cp, err := s.store.CreateCheckpoint(r.Context(), doc)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, NewCheckpointModel(cp))
		return
	}
	if doc, id, ok := checkpointID(p); ok {
		if _, err := s.store.RestoreCheckpoint(r.Context(), doc, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var body SaveModel
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: %v", contents.ErrInvalidContent, err))
			return
		}
	}
	doc, err := s.newUntitled(r.Context(), p, body)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/contents/"+doc.Path)
	writeJSON(w, http.StatusCreated, NewModel(doc))
}

// Rename handles PATCH /api/contents/{path} with body {"path": "new/path"}
func (s *Server) Rename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		writeError(w, fmt.Errorf("%w: body must carry the new path", contents.ErrInvalidPath))
		return
	}
	doc, err := s.store.Rename(r.Context(), pathParam(r), body.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewModel(doc))
}

// Delete handles DELETE /api/contents/{path} and DELETE {path}/checkpoints/{id}
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	p := pathParam(r)
	var err error
	if doc, id, ok := checkpointID(p); ok {
		err = s.store.DeleteCheckpoint(r.Context(), doc, id)
	} else {
		err = s.store.Delete(r.Context(), p)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCheckpoints(w http.ResponseWriter, r *http.Request, p string) {
	checkpoints, err := s.store.ListCheckpoints(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	result := make([]*CheckpointModel, 0, len(checkpoints))
	for _, cp := range checkpoints {
		result = append(result, NewCheckpointModel(cp))
	}
	writeJSON(w, http.StatusOK, result)
}

// newUntitled picks the first free Untitled name in dir.
func (s *Server) newUntitled(ctx context.Context, dir string, body SaveModel) (*contents.Document, error) {
	typ := contents.Type(body.Type)
	if typ == "" {
		typ = contents.TypeFile
	}
	base, ext := "untitled", body.Ext
	req := contents.SaveRequest{Type: typ}
	switch typ {
	case contents.TypeDirectory:
		base, ext = "Untitled Folder", ""
	case contents.TypeNotebook:
		base, ext = "Untitled", ".ipynb"
		req.Content = []byte(`{"cells":[],"metadata":{},"nbformat":4,"nbformat_minor":5}`)
	default:
		if ext == "" {
			ext = ".txt"
		}
		req.Content = []byte{}
	}
	for i := 0; i < 1000; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s%d%s", base, i, ext)
		}
		candidate := strings.TrimSuffix(dir, "/") + "/" + name
		if s.store.Exists(ctx, candidate) {
			continue
		}
		return s.store.Save(ctx, candidate, req)
	}
	return nil, fmt.Errorf("%w: no free untitled name in %s", contents.ErrConflict, dir)
}

func pathParam(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}

// checkpointTarget matches {path}/checkpoints.
func checkpointTarget(p string) (string, bool) {
	doc, ok := strings.CutSuffix(p, "/"+checkpointsSegment)
	return doc, ok && doc != ""
}

// checkpointID matches {path}/checkpoints/{id}.
func checkpointID(p string) (string, string, bool) {
	idx := strings.LastIndex(p, "/"+checkpointsSegment+"/")
	if idx <= 0 {
		return "", "", false
	}
	id := p[idx+len(checkpointsSegment)+2:]
	if id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	return p[:idx], id, true
}

// StatusOf maps store errors onto HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, contents.ErrInvalidPath), errors.Is(err, contents.ErrInvalidContent),
		errors.Is(err, contents.ErrIsDirectory), errors.Is(err, contents.ErrNotDirectory):
		return http.StatusBadRequest
	case errors.Is(err, contents.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contents.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, contents.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, contents.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, contents.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %v", err)
	}
	writeJSON(w, status, map[string]string{"message": err.Error(), "reason": http.StatusText(status)})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
