package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/omnicm/api"
)

//go:embed tools/get.md
var descGet string

//go:embed tools/list.md
var descList string

//go:embed tools/save.md
var descSave string

//go:embed tools/delete.md
var descDelete string

//go:embed tools/rename.md
var descRename string

//go:embed tools/checkpoints.md
var descCheckpoints string

//go:embed tools/restore.md
var descRestore string

func registerTools(registry *protoserver.Registry, h *Handler) error {
	if err := protoserver.RegisterTool[*GetInput, *GetOutput](registry, "get", descGet, func(ctx context.Context, in *GetInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.tools.Get(ctx, in)
		if err != nil {
			return buildErrorResult(err)
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*ListInput, *ListOutput](registry, "list", descList, func(ctx context.Context, in *ListInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.tools.List(ctx, in)
		if err != nil {
			return buildErrorResult(err)
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*SaveInput, *SaveOutput](registry, "save", descSave, func(ctx context.Context, in *SaveInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.tools.Save(ctx, in)
		if err != nil {
			return buildErrorResult(err)
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*DeleteInput, *DeleteOutput](registry, "delete", descDelete, func(ctx context.Context, in *DeleteInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.tools.Delete(ctx, in)
		if err != nil {
			return buildErrorResult(err)
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*RenameInput, *RenameOutput](registry, "rename", descRename, func(ctx context.Context, in *RenameInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.tools.Rename(ctx, in)
		if err != nil {
			return buildErrorResult(err)
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*CheckpointsInput, *CheckpointsOutput](registry, "checkpoints", descCheckpoints, func(ctx context.Context, in *CheckpointsInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.tools.Checkpoints(ctx, in)
		if err != nil {
			return buildErrorResult(err)
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*RestoreInput, *RestoreOutput](registry, "restore", descRestore, func(ctx context.Context, in *RestoreInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.tools.Restore(ctx, in)
		if err != nil {
			return buildErrorResult(err)
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	return nil
}

// errMissingInput is returned when a tool is invoked without arguments.
var errMissingInput = errors.New("mcp: missing input")

// buildErrorResult reports client mistakes as invalid params and backend trouble as internal errors.
func buildErrorResult(err error) (*schema.CallToolResult, *jsonrpc.Error) {
	code := jsonrpc.InvalidParams
	if status := api.StatusOf(err); status >= http.StatusInternalServerError || status == http.StatusForbidden {
		code = jsonrpc.InternalError
	}
	return nil, jsonrpc.NewError(code, err.Error(), nil)
}

func buildSuccessResult(payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	b, _ := json.Marshal(payload)
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{
			schema.TextContent{Type: "text", Text: string(b)},
		},
		StructuredContent: map[string]any{"result": payload},
	}, nil
}
