package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/mcp/internal/protocol"
	"github.com/therealnoof/mcp-server-lab/mcp/transport"
	"github.com/therealnoof/mcp-server-lab/pkg/schema"
)

// Server exposes registered tools over MCP: the initialize handshake,
// tools/list with optional cursor pagination, and tools/call dispatch.
type Server struct {
	protocol  *protocol.Protocol
	transport transport.Transport

	name            string
	version         string
	instructions    string
	paginationLimit *int

	mu      sync.RWMutex
	tools   map[string]*registeredTool
	serving bool
}

type registeredTool struct {
	name        string
	description string
	inputSchema any
	handler     func(ctx context.Context, raw json.RawMessage) (*ToolResponse, error)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithName sets the server implementation name reported in initialize.
func WithName(name string) ServerOption {
	return func(s *Server) {
		s.name = name
	}
}

// WithVersion sets the server implementation version reported in initialize.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithInstructions sets usage instructions returned to clients in initialize.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithPaginationLimit caps the page size of tools/list responses.
func WithPaginationLimit(limit int) ServerOption {
	return func(s *Server) {
		s.paginationLimit = &limit
	}
}

// NewServer creates a server on the given transport.
func NewServer(tr transport.Transport, opts ...ServerOption) *Server {
	s := &Server{
		protocol:  protocol.NewProtocol(),
		transport: tr,
		name:      "mcp-server-lab",
		version:   "1.0.0",
		tools:     make(map[string]*registeredTool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTool registers a tool handler under the given name. The handler
// must be a func taking a single struct argument and returning
// (*ToolResponse, error); the argument struct is reflected into the tool's
// input schema.
func (s *Server) RegisterTool(name string, description string, handler any) error {
	wrapped, inputSchema, err := wrapToolHandler(handler)
	if err != nil {
		return errors.Wrapf(err, "invalid handler for tool %q", name)
	}

	s.mu.Lock()
	s.tools[name] = &registeredTool{
		name:        name,
		description: description,
		inputSchema: inputSchema,
		handler:     wrapped,
	}
	s.mu.Unlock()

	return s.sendToolListChangedNotification()
}

// DeregisterTool removes a tool from the catalog.
func (s *Server) DeregisterTool(name string) error {
	s.mu.Lock()
	delete(s.tools, name)
	s.mu.Unlock()

	return s.sendToolListChangedNotification()
}

func (s *Server) sendToolListChangedNotification() error {
	s.mu.RLock()
	serving := s.serving
	s.mu.RUnlock()
	if !serving {
		return nil
	}
	return s.protocol.Notification("notifications/tools/list_changed", nil)
}

var toolResponseType = reflect.TypeOf((*ToolResponse)(nil))
var errorType = reflect.TypeOf((*error)(nil)).Elem()

func wrapToolHandler(handler any) (func(ctx context.Context, raw json.RawMessage) (*ToolResponse, error), any, error) {
	hv := reflect.ValueOf(handler)
	ht := hv.Type()
	if ht.Kind() != reflect.Func {
		return nil, nil, errors.New("handler must be a func")
	}
	if ht.NumIn() != 1 || ht.In(0).Kind() != reflect.Struct {
		return nil, nil, errors.New("handler must take a single struct argument")
	}
	if ht.NumOut() != 2 || ht.Out(0) != toolResponseType || ht.Out(1) != errorType {
		return nil, nil, errors.New("handler must return (*ToolResponse, error)")
	}

	argType := ht.In(0)
	argSchema, err := schema.New(argType)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to reflect argument schema")
	}

	wrapped := func(ctx context.Context, raw json.RawMessage) (*ToolResponse, error) {
		args := reflect.New(argType)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, args.Interface()); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal arguments")
			}
		}

		out := hv.Call([]reflect.Value{args.Elem()})
		if !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		resp, _ := out[0].Interface().(*ToolResponse)
		return resp, nil
	}

	return wrapped, argSchema.Parameters, nil
}

// Serve connects the protocol handlers and starts the transport.
func (s *Server) Serve() error {
	s.mu.Lock()
	if s.serving {
		s.mu.Unlock()
		return errors.New("server already serving")
	}
	s.serving = true
	s.mu.Unlock()

	s.protocol.SetRequestHandler("initialize", s.handleInitialize)
	s.protocol.SetRequestHandler("tools/list", s.handleListTools)
	s.protocol.SetRequestHandler("tools/call", s.handleToolCalls)
	s.protocol.SetRequestHandler("ping", s.handlePing)

	return s.protocol.Connect(s.transport)
}

// Close shuts down the underlying transport.
func (s *Server) Close() error {
	return s.protocol.Close()
}

func (s *Server) handleInitialize(_ context.Context, request *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	var params InitializeRequest
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal initialize params")
		}
	}

	logger.KV(xlog.DEBUG,
		"client", params.ClientInfo.Name,
		"version", params.ClientInfo.Version,
	)

	return InitializeResponse{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{
				ListChanged: true,
			},
		},
		ServerInfo: Implementation{
			Name:    s.name,
			Version: s.version,
		},
		Instructions: s.instructions,
	}, nil
}

func (s *Server) handlePing(_ context.Context, _ *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	return map[string]any{}, nil
}

// handleListTools returns the catalog sorted by tool name. When a pagination
// limit is set, the page after the cursor is returned and NextCursor encodes
// the last name on the page.
func (s *Server) handleListTools(_ context.Context, request *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	var params ListToolsRequest
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal list params")
		}
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if params.Cursor != nil {
		decoded, err := base64.StdEncoding.DecodeString(*params.Cursor)
		if err != nil {
			s.mu.RUnlock()
			return nil, errors.New("invalid cursor")
		}
		after := string(decoded)
		start = sort.SearchStrings(names, after)
		if start < len(names) && names[start] == after {
			start++
		}
	}

	end := len(names)
	var nextCursor *string
	if s.paginationLimit != nil && start+*s.paginationLimit < len(names) {
		end = start + *s.paginationLimit
		cursor := base64.StdEncoding.EncodeToString([]byte(names[end-1]))
		nextCursor = &cursor
	}

	tools := make([]Tool, 0, end-start)
	for _, name := range names[start:end] {
		reg := s.tools[name]
		description := reg.description
		tools = append(tools, Tool{
			Name:        name,
			Description: &description,
			InputSchema: reg.inputSchema,
		})
	}
	s.mu.RUnlock()

	return ToolsResponse{
		Tools:      tools,
		NextCursor: nextCursor,
	}, nil
}

func (s *Server) handleToolCalls(ctx context.Context, request *transport.BaseJSONRPCRequest, _ protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
	var params CallToolRequest
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal call params")
	}

	s.mu.RLock()
	reg := s.tools[params.Name]
	s.mu.RUnlock()

	if reg == nil {
		return nil, errors.Newf("unknown tool: %s", params.Name)
	}

	logger.ContextKV(ctx, xlog.DEBUG, "tool", params.Name)

	resp, err := reg.handler(ctx, params.Arguments)
	if err != nil {
		// Handler failures travel in-band so the caller can surface them to
		// the model instead of aborting the session.
		return &ToolResponse{
			Content: []*Content{NewTextContent(err.Error())},
			IsError: true,
		}, nil
	}
	return resp, nil
}
