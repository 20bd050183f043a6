package contents

import (
	"mime"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/cache"
)

// Type is the kind of document.
type Type string

const (
	TypeFile      Type = "file"
	TypeDirectory Type = "directory"
	TypeNotebook  Type = "notebook"
)

// Format describes how Content is meant to be presented.
type Format string

const (
	FormatText   Format = "text"
	FormatBase64 Format = "base64"
	FormatJSON   Format = "json"
)

const notebookExt = ".ipynb"

// Document is a node of the logical tree.
type Document struct {
	Name          string
	Path          string
	Type          Type
	Created       time.Time
	LastModified  time.Time
	Size          int64
	Writable      bool
	Mimetype      string
	Format        Format
	Content       []byte
	Notebook      Notebook
	Entries       []*Document
	Hash          string
	HashAlgorithm string
	// ContentLoaded distinguishes an empty file from a metadata only model.
	ContentLoaded bool
}

// Text returns the content as a string.
func (d *Document) Text() string {
	return string(d.Content)
}

// typeOf infers the document type from backend metadata.
func typeOf(info *backend.FileInfo) Type {
	switch {
	case info.IsDir:
		return TypeDirectory
	case strings.HasSuffix(info.Name, notebookExt):
		return TypeNotebook
	}
	return TypeFile
}

func newDocument(logical string, info *backend.FileInfo, typ Type) *Document {
	doc := &Document{
		Name:         path.Base("/" + logical),
		Path:         logical,
		Type:         typ,
		Created:      info.Accessed.UTC(),
		LastModified: info.ModTime.UTC(),
		Writable:     info.Mode.Perm()&0o200 != 0,
	}
	if logical == "" {
		doc.Name = ""
	}
	if typ != TypeDirectory {
		doc.Size = info.Size
	}
	if typ == TypeFile {
		doc.Mimetype = mimetypeOf(doc.Name)
	}
	return doc
}

func mimetypeOf(name string) string {
	mt := mime.TypeByExtension(path.Ext(name))
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}

// setFileContent applies format negotiation: unspecified format is text when valid UTF-8, base64 otherwise.
func (d *Document) setFileContent(content []byte, format Format) error {
	switch format {
	case FormatText:
		if !utf8.Valid(content) {
			return ErrInvalidContent
		}
	case FormatBase64:
	case "":
		format = FormatText
		if !utf8.Valid(content) {
			format = FormatBase64
		}
	default:
		return ErrInvalidContent
	}
	if d.Mimetype == "" {
		d.Mimetype = "text/plain"
		if format == FormatBase64 {
			d.Mimetype = "application/octet-stream"
		}
	}
	d.Format = format
	d.setContent(content)
	return nil
}

func (d *Document) setContent(content []byte) {
	d.Content = content
	d.ContentLoaded = true
	d.Size = int64(len(content))
	d.Hash = cache.HashString(content)
	d.HashAlgorithm = cache.HashAlgorithm
}
