package mcp

import (
	"context"

	"github.com/viant/jsonrpc/transport"
	protoclient "github.com/viant/mcp-protocol/client"
	"github.com/viant/mcp-protocol/logger"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/omnicm/api"
)

// Handler serves the contents tools over the MCP protocol.
type Handler struct {
	*protoserver.DefaultHandler
	tools *Tools
}

// NewHandler returns a handler factory registering the contents tools backed by store.
func NewHandler(store api.Store, metricsLog bool) protoserver.NewHandler {
	return func(_ context.Context, notifier transport.Notifier, logger logger.Logger, clientOperation protoclient.Operations) (protoserver.Handler, error) {
		base := protoserver.NewDefaultHandler(notifier, logger, clientOperation)
		h := &Handler{
			DefaultHandler: base,
			tools:          NewTools(store, metricsLog),
		}
		if err := registerTools(base.Registry, h); err != nil {
			return nil, err
		}
		return h, nil
	}
}
