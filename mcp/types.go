package mcp

import (
	"github.com/viant/omnicm/api"
)

// GetInput selects a document and, for text files, the slice of content to return.
type GetInput struct {
	Path    string `json:"path"`
	Content *bool  `json:"content,omitempty"`
	Type    string `json:"type,omitempty"`
	Format  string `json:"format,omitempty"`

	BytesRange BytesRange `json:"bytesRange,omitempty"`
	LineRange

	MaxBytes int    `json:"maxBytes,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

type GetOutput struct {
	Document  *api.Model `json:"document"`
	Returned  int        `json:"returned,omitempty"`
	Remaining int        `json:"remaining,omitempty"`
	StartLine int        `json:"startLine,omitempty"`
	EndLine   int        `json:"endLine,omitempty"`
}

type BytesRange struct {
	OffsetBytes int64 `json:"offsetBytes,omitempty"`
	LengthBytes int   `json:"lengthBytes,omitempty"`
}

type LineRange struct {
	StartLine int `json:"startLine,omitempty"`
	LineCount int `json:"lineCount,omitempty"`
}

type ListInput struct {
	Path     string `json:"path,omitempty"`
	MaxItems int    `json:"maxItems,omitempty"`
}

type ListOutput struct {
	Items []*api.Model `json:"items"`
	Total int          `json:"total"`
}

// SaveInput carries notebook JSON or file text (base64 when format is base64) in Content.
type SaveInput struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Format  string `json:"format,omitempty"`
	Content string `json:"content,omitempty"`
}

type SaveOutput struct {
	Document *api.Model `json:"document"`
}

type DeleteInput struct {
	Path string `json:"path"`
}

type DeleteOutput struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}

type RenameInput struct {
	Path    string `json:"path"`
	NewPath string `json:"newPath"`
}

type RenameOutput struct {
	Document *api.Model `json:"document"`
}

// CheckpointsInput lists checkpoints of Path; Create snapshots it first, Delete removes one id.
type CheckpointsInput struct {
	Path   string `json:"path"`
	Create bool   `json:"create,omitempty"`
	Delete string `json:"delete,omitempty"`
}

type CheckpointsOutput struct {
	Created     *api.CheckpointModel   `json:"created,omitempty"`
	Checkpoints []*api.CheckpointModel `json:"checkpoints"`
}

type RestoreInput struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

type RestoreOutput struct {
	Document *api.Model `json:"document"`
}
