package mcp

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/mcp/internal/protocol"
	"github.com/therealnoof/mcp-server-lab/mcp/transport"
)

var logger = xlog.NewPackageLogger("github.com/therealnoof/mcp-server-lab", "mcp")

// Client speaks the client side of MCP: initialize the session once, then
// list and call tools. Initialize must succeed before any other call.
type Client struct {
	transport    transport.Transport
	protocol     *protocol.Protocol
	capabilities *ServerCapabilities
	initialized  bool
}

// NewClient creates a client on the given transport.
func NewClient(tr transport.Transport) *Client {
	return &Client{
		transport: tr,
		protocol:  protocol.NewProtocol(),
	}
}

// Initialize performs the session handshake and records the server's
// capabilities. It must be called exactly once before ListTools or CallTool.
func (c *Client) Initialize(ctx context.Context) (*InitializeResponse, error) {
	if c.initialized {
		return nil, errors.New("client already initialized")
	}
	if err := c.protocol.Connect(c.transport); err != nil {
		return nil, errors.Wrap(err, "failed to connect transport")
	}

	request := InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ClientCapabilities{},
		ClientInfo: Implementation{
			Name:    "mcp-server-lab",
			Version: "1.0.0",
		},
	}

	raw, err := c.protocol.Request(ctx, "initialize", request, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize")
	}

	response, err := unmarshalResult[InitializeResponse](raw)
	if err != nil {
		return nil, err
	}

	if err := c.protocol.Notification("notifications/initialized", nil); err != nil {
		return nil, errors.Wrap(err, "failed to send initialized notification")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", response.ServerInfo.Name,
		"version", response.ServerInfo.Version,
	)

	c.capabilities = &response.Capabilities
	c.initialized = true
	return response, nil
}

// ListTools fetches a single page of the server's tool catalog. A nil cursor
// requests the first page; the response's NextCursor, when set, fetches the
// next one.
func (c *Client) ListTools(ctx context.Context, cursor *string) (*ToolsResponse, error) {
	if !c.initialized {
		return nil, errors.New("client not initialized")
	}

	raw, err := c.protocol.Request(ctx, "tools/list", ListToolsRequest{Cursor: cursor}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tools")
	}
	return unmarshalResult[ToolsResponse](raw)
}

// ListAllTools walks the cursor chain and returns the complete catalog.
func (c *Client) ListAllTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	var cursor *string
	for {
		page, err := c.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		tools = append(tools, page.Tools...)
		if page.NextCursor == nil {
			return tools, nil
		}
		cursor = page.NextCursor
	}
}

// CallTool invokes a tool by name. Arguments may be nil for tools that take
// no input.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (*ToolResponse, error) {
	if !c.initialized {
		return nil, errors.New("client not initialized")
	}

	marshalled, err := json.Marshal(arguments)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal arguments")
	}

	raw, err := c.protocol.Request(ctx, "tools/call", CallToolRequest{
		Name:      name,
		Arguments: marshalled,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call tool %q", name)
	}
	return unmarshalResult[ToolResponse](raw)
}

// Close shuts down the underlying transport.
func (c *Client) Close() error {
	return c.protocol.Close()
}
