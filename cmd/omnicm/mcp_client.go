package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/viant/jsonrpc"
	streamingclient "github.com/viant/jsonrpc/transport/client/http/streamable"
	mcpschema "github.com/viant/mcp-protocol/schema"
	mcpclient "github.com/viant/mcp/client"

	omcp "github.com/viant/omnicm/mcp"
	"github.com/viant/omnicm/service"
)

// contentsClient is the tool set CLI commands call.
type contentsClient interface {
	Get(ctx context.Context, in *omcp.GetInput) (*omcp.GetOutput, error)
	List(ctx context.Context, in *omcp.ListInput) (*omcp.ListOutput, error)
	Save(ctx context.Context, in *omcp.SaveInput) (*omcp.SaveOutput, error)
	Delete(ctx context.Context, in *omcp.DeleteInput) (*omcp.DeleteOutput, error)
	Rename(ctx context.Context, in *omcp.RenameInput) (*omcp.RenameOutput, error)
	Checkpoints(ctx context.Context, in *omcp.CheckpointsInput) (*omcp.CheckpointsOutput, error)
	Restore(ctx context.Context, in *omcp.RestoreInput) (*omcp.RestoreOutput, error)
	Close()
}

type localClient struct {
	*omcp.Tools
	svc *service.Service
}

func (c *localClient) Close() {
	if err := c.svc.Close(); err != nil {
		log.Printf("close: %v", err)
	}
}

type noopClientHandler struct{}

func (n *noopClientHandler) Implements(string) bool { return false }
func (n *noopClientHandler) Init(context.Context, *mcpschema.ClientCapabilities) {
}
func (n *noopClientHandler) OnNotification(context.Context, *jsonrpc.Notification) {}

func (n *noopClientHandler) Notify(context.Context, *jsonrpc.Notification) error { return nil }
func (n *noopClientHandler) NextRequestID() jsonrpc.RequestId {
	return jsonrpc.RequestId(1)
}
func (n *noopClientHandler) LastRequestID() jsonrpc.RequestId {
	return jsonrpc.RequestId(1)
}

func (n *noopClientHandler) ListRoots(context.Context, *jsonrpc.TypedRequest[*mcpschema.ListRootsRequest]) (*mcpschema.ListRootsResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("not implemented", nil)
}
func (n *noopClientHandler) CreateMessage(context.Context, *jsonrpc.TypedRequest[*mcpschema.CreateMessageRequest]) (*mcpschema.CreateMessageResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("not implemented", nil)
}
func (n *noopClientHandler) Elicit(context.Context, *jsonrpc.TypedRequest[*mcpschema.ElicitRequest]) (*mcpschema.ElicitResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("not implemented", nil)
}

// remoteClient calls the contents tools of a running omnicm MCP server.
type remoteClient struct {
	addr string
	cli  *mcpclient.Client
}

func newRemoteClient(ctx context.Context, addr string) (*remoteClient, error) {
	url := normalizeMCPURL(addr)
	handler := mcpclient.NewHandler(&noopClientHandler{})
	transport, err := streamingclient.New(ctx, url, streamingclient.WithHandler(handler))
	if err != nil {
		return nil, err
	}
	cli := mcpclient.New("omnicm-cli", "0.1.0", transport)
	if _, err := cli.Initialize(ctx); err != nil {
		return nil, err
	}
	return &remoteClient{addr: addr, cli: cli}, nil
}

func (c *remoteClient) Close() {
	c.cli.Close()
}

func (c *remoteClient) Get(ctx context.Context, in *omcp.GetInput) (*omcp.GetOutput, error) {
	return callTool[omcp.GetOutput](ctx, c, "get", in)
}

func (c *remoteClient) List(ctx context.Context, in *omcp.ListInput) (*omcp.ListOutput, error) {
	return callTool[omcp.ListOutput](ctx, c, "list", in)
}

func (c *remoteClient) Save(ctx context.Context, in *omcp.SaveInput) (*omcp.SaveOutput, error) {
	return callTool[omcp.SaveOutput](ctx, c, "save", in)
}

func (c *remoteClient) Delete(ctx context.Context, in *omcp.DeleteInput) (*omcp.DeleteOutput, error) {
	return callTool[omcp.DeleteOutput](ctx, c, "delete", in)
}

func (c *remoteClient) Rename(ctx context.Context, in *omcp.RenameInput) (*omcp.RenameOutput, error) {
	return callTool[omcp.RenameOutput](ctx, c, "rename", in)
}

func (c *remoteClient) Checkpoints(ctx context.Context, in *omcp.CheckpointsInput) (*omcp.CheckpointsOutput, error) {
	return callTool[omcp.CheckpointsOutput](ctx, c, "checkpoints", in)
}

func (c *remoteClient) Restore(ctx context.Context, in *omcp.RestoreInput) (*omcp.RestoreOutput, error) {
	return callTool[omcp.RestoreOutput](ctx, c, "restore", in)
}

// callTool invokes a tool, retrying connection level failures a few times.
func callTool[O any](ctx context.Context, c *remoteClient, name string, input any) (*O, error) {
	const maxAttempts = 3
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := callToolOnce[O](ctx, c.cli, name, input)
		if err == nil {
			log.Printf("mcp metric op=%s addr=%s dur=%s", name, c.addr, time.Since(start))
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryableMCPError(err.Error()) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*200) * time.Millisecond)
	}
	return nil, lastErr
}

func callToolOnce[O any](ctx context.Context, cli *mcpclient.Client, name string, input any) (*O, error) {
	params, err := mcpschema.NewCallToolRequestParams(name, input)
	if err != nil {
		return nil, err
	}
	res, err := cli.CallTool(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := toolResultError(res); err != nil {
		return nil, err
	}
	var out O
	if err := decodeToolResult(res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func isRetryableMCPError(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporarily unavailable") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused")
}

func normalizeMCPURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if strings.HasSuffix(addr, "/mcp") {
		return addr
	}
	if strings.HasSuffix(addr, "/") {
		return addr + "mcp"
	}
	return addr + "/mcp"
}

func toolResultError(res *mcpschema.CallToolResult) error {
	if res == nil {
		return fmt.Errorf("mcp: empty response")
	}
	if res.IsError != nil && *res.IsError {
		return fmt.Errorf("mcp: %s", toolResultText(res))
	}
	return nil
}

func decodeToolResult(res *mcpschema.CallToolResult, out any) error {
	if res == nil {
		return fmt.Errorf("mcp: empty response")
	}
	if res.StructuredContent != nil {
		if v, ok := res.StructuredContent["result"]; ok {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return json.Unmarshal(b, out)
		}
	}
	text := toolResultText(res)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("mcp: empty result")
	}
	return json.Unmarshal([]byte(text), out)
}

func toolResultText(res *mcpschema.CallToolResult) string {
	if res == nil {
		return ""
	}
	for _, elem := range res.Content {
		switch v := any(elem).(type) {
		case mcpschema.TextContent:
			if v.Text != "" {
				return v.Text
			}
		case *mcpschema.TextContent:
			if v != nil && v.Text != "" {
				return v.Text
			}
		case map[string]any:
			if t, ok := v["text"].(string); ok && t != "" {
				return t
			}
		default:
			if text := textFieldFromStruct(v); text != "" {
				return text
			}
		}
	}
	return ""
}

func textFieldFromStruct(value any) string {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return ""
	}
	field := v.FieldByName("Text")
	if !field.IsValid() || field.Kind() != reflect.String {
		return ""
	}
	return field.String()
}
