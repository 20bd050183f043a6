package mcp

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/viant/omnicm/api"
	"github.com/viant/omnicm/contents"
)

const defaultGetMaxBytes = 64 * 1024

// Tools implements the contents tool set over a store.
type Tools struct {
	store      api.Store
	metricsLog bool
}

// NewTools creates the tool set; metricsLog enables per call metric lines.
func NewTools(store api.Store, metricsLog bool) *Tools {
	return &Tools{store: store, metricsLog: metricsLog}
}

// Get returns a document; text file content is clipped to the requested window.
func (t *Tools) Get(ctx context.Context, in *GetInput) (*GetOutput, error) {
	start := time.Now()
	if in == nil {
		return nil, errMissingInput
	}
	loadContent := in.Content == nil || *in.Content
	doc, err := t.store.Get(ctx, in.Path, contents.GetOptions{
		Content: loadContent,
		Type:    contents.Type(in.Type),
		Format:  contents.Format(in.Format),
	})
	if err != nil {
		return nil, err
	}
	out := &GetOutput{}
	if doc.ContentLoaded && doc.Type == contents.TypeFile && doc.Format == contents.FormatText {
		if err = applySelection(doc, in, out); err != nil {
			return nil, err
		}
	}
	out.Document = api.NewModel(doc)
	if t.metricsLog {
		log.Printf("mcp metric op=get path=%s size=%d returned=%d dur=%s", doc.Path, doc.Size, out.Returned, time.Since(start))
	}
	return out, nil
}

// applySelection narrows text content to the requested byte range, line range or head/tail window.
func applySelection(doc *contents.Document, in *GetInput, out *GetOutput) error {
	data := doc.Content
	var selected span
	switch {
	case in.BytesRange.OffsetBytes != 0 || in.BytesRange.LengthBytes != 0:
		var err error
		if selected, err = byteSpan(data, in.BytesRange); err != nil {
			return err
		}
	case in.StartLine > 0:
		selected = lineSpan(data, LineRange{StartLine: in.StartLine, LineCount: max(in.LineCount, 0)})
		out.StartLine = in.StartLine
		if in.LineCount > 0 {
			out.EndLine = in.StartLine + in.LineCount - 1
		}
	default:
		maxBytes := in.MaxBytes
		if maxBytes <= 0 {
			maxBytes = defaultGetMaxBytes
		}
		if strings.EqualFold(strings.TrimSpace(in.Mode), "tail") {
			selected = tailSpan(data, maxBytes, max(in.LineCount, 0))
		} else {
			selected = headSpan(data, maxBytes, max(in.LineCount, 0))
		}
	}
	doc.Content = selected.of(data)
	out.Returned = len(doc.Content)
	out.Remaining = len(data) - out.Returned
	return nil
}

// List returns at most MaxItems entries while Total counts all of them.
func (t *Tools) List(ctx context.Context, in *ListInput) (*ListOutput, error) {
	start := time.Now()
	if in == nil {
		in = &ListInput{}
	}
	seq, err := t.store.List(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	out := &ListOutput{Items: []*api.Model{}}
	for doc := range seq {
		out.Total++
		if in.MaxItems > 0 && len(out.Items) >= in.MaxItems {
			continue
		}
		out.Items = append(out.Items, api.NewModel(doc))
	}
	if t.metricsLog {
		log.Printf("mcp metric op=list path=%s items=%d dur=%s", in.Path, out.Total, time.Since(start))
	}
	return out, nil
}

func (t *Tools) Save(ctx context.Context, in *SaveInput) (*SaveOutput, error) {
	if in == nil {
		return nil, errMissingInput
	}
	req := contents.SaveRequest{Type: contents.Type(in.Type), Format: contents.Format(in.Format)}
	if req.Type != contents.TypeDirectory {
		req.Content = []byte(in.Content)
	}
	doc, err := t.store.Save(ctx, in.Path, req)
	if err != nil {
		return nil, err
	}
	return &SaveOutput{Document: api.NewModel(doc)}, nil
}

func (t *Tools) Delete(ctx context.Context, in *DeleteInput) (*DeleteOutput, error) {
	if in == nil {
		return nil, errMissingInput
	}
	if err := t.store.Delete(ctx, in.Path); err != nil {
		return nil, err
	}
	return &DeleteOutput{Path: in.Path, Deleted: true}, nil
}

func (t *Tools) Rename(ctx context.Context, in *RenameInput) (*RenameOutput, error) {
	if in == nil {
		return nil, errMissingInput
	}
	doc, err := t.store.Rename(ctx, in.Path, in.NewPath)
	if err != nil {
		return nil, err
	}
	return &RenameOutput{Document: api.NewModel(doc)}, nil
}

// Checkpoints optionally creates or deletes a checkpoint, then lists what remains.
func (t *Tools) Checkpoints(ctx context.Context, in *CheckpointsInput) (*CheckpointsOutput, error) {
	if in == nil {
		return nil, errMissingInput
	}
	out := &CheckpointsOutput{Checkpoints: []*api.CheckpointModel{}}
	if in.Create {
		cp, err := t.store.CreateCheckpoint(ctx, in.Path)
		if err != nil {
			return nil, err
		}
		out.Created = api.NewCheckpointModel(cp)
	}
	if in.Delete != "" {
		if err := t.store.DeleteCheckpoint(ctx, in.Path, in.Delete); err != nil {
			return nil, err
		}
	}
	checkpoints, err := t.store.ListCheckpoints(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	for _, cp := range checkpoints {
		out.Checkpoints = append(out.Checkpoints, api.NewCheckpointModel(cp))
	}
	return out, nil
}

func (t *Tools) Restore(ctx context.Context, in *RestoreInput) (*RestoreOutput, error) {
	if in == nil {
		return nil, errMissingInput
	}
	doc, err := t.store.RestoreCheckpoint(ctx, in.Path, in.ID)
	if err != nil {
		return nil, err
	}
	return &RestoreOutput{Document: api.NewModel(doc)}, nil
}
