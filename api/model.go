package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/omnicm/checkpoint"
	"github.com/viant/omnicm/contents"
)

// Model is the JSON form of a document exchanged with notebook hosts.
type Model struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	Type          string    `json:"type"`
	Writable      bool      `json:"writable"`
	Created       time.Time `json:"created"`
	LastModified  time.Time `json:"last_modified"`
	Size          *int64    `json:"size"`
	Mimetype      *string   `json:"mimetype"`
	Format        *string   `json:"format"`
	Content       any       `json:"content"`
	Hash          string    `json:"hash,omitempty"`
	HashAlgorithm string    `json:"hash_algorithm,omitempty"`
}

// NewModel converts a document, encoding loaded content according to its format.
func NewModel(doc *contents.Document) *Model {
	ret := &Model{
		Name:          doc.Name,
		Path:          doc.Path,
		Type:          string(doc.Type),
		Writable:      doc.Writable,
		Created:       doc.Created,
		LastModified:  doc.LastModified,
		Hash:          doc.Hash,
		HashAlgorithm: doc.HashAlgorithm,
	}
	if doc.Type != contents.TypeDirectory {
		size := doc.Size
		ret.Size = &size
	}
	if doc.Mimetype != "" {
		mimetype := doc.Mimetype
		ret.Mimetype = &mimetype
	}
	if !doc.ContentLoaded {
		return ret
	}
	format := string(doc.Format)
	ret.Format = &format
	switch {
	case doc.Type == contents.TypeDirectory:
		entries := make([]*Model, 0, len(doc.Entries))
		for _, entry := range doc.Entries {
			entries = append(entries, NewModel(entry))
		}
		ret.Content = entries
	case doc.Type == contents.TypeNotebook:
		ret.Content = doc.Notebook
	case doc.Format == contents.FormatBase64:
		ret.Content = base64.StdEncoding.EncodeToString(doc.Content)
	default:
		ret.Content = doc.Text()
	}
	return ret
}

// SaveModel is the body of a save request.
type SaveModel struct {
	Type    string          `json:"type"`
	Format  string          `json:"format"`
	Content json.RawMessage `json:"content"`
	Path    string          `json:"path,omitempty"`
	Ext     string          `json:"ext,omitempty"`
}

// Request converts the body to a store save request.
func (m *SaveModel) Request() (contents.SaveRequest, error) {
	req := contents.SaveRequest{Type: contents.Type(m.Type), Format: contents.Format(m.Format)}
	if len(m.Content) == 0 || string(m.Content) == "null" {
		if req.Type != contents.TypeDirectory {
			return req, fmt.Errorf("%w: no content provided", contents.ErrInvalidContent)
		}
		return req, nil
	}
	switch req.Type {
	case contents.TypeNotebook:
		req.Content = m.Content
	case contents.TypeFile:
		var text string
		if err := json.Unmarshal(m.Content, &text); err != nil {
			return req, fmt.Errorf("%w: file content must be a string", contents.ErrInvalidContent)
		}
		req.Content = []byte(text)
	}
	return req, nil
}

// CheckpointModel is the JSON form of a checkpoint.
type CheckpointModel struct {
	ID           string    `json:"id"`
	LastModified time.Time `json:"last_modified"`
}

// NewCheckpointModel converts a checkpoint.
func NewCheckpointModel(cp *checkpoint.Checkpoint) *CheckpointModel {
	return &CheckpointModel{ID: cp.ID, LastModified: cp.LastModified}
}
