// Package mcp provides a client and server for the Model Context Protocol:
// tool discovery, tool invocation, and the JSON-RPC session handshake, over
// pluggable transports.
package mcp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ProtocolVersion is the MCP revision this package speaks.
const ProtocolVersion = "2024-11-05"

// Implementation describes the name and version of an MCP client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities advertised by a client during initialization.
type ClientCapabilities struct {
	Experimental map[string]any `json:"experimental,omitempty"`
}

// ServerCapabilities advertised by a server during initialization.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability signals that the server exposes tools.
type ToolsCapability struct {
	// ListChanged indicates the server emits notifications/tools/list_changed.
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeRequest is the params body of the initialize request.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResponse is the result body of the initialize request.
type InitializeResponse struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Tool is a tool definition as advertised by tools/list: name, human
// description, and a JSON schema for the arguments.
type Tool struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	InputSchema any     `json:"inputSchema"`
}

// ToolsResponse is the result body of tools/list. NextCursor is set when more
// tools remain past the page boundary.
type ToolsResponse struct {
	Tools      []Tool  `json:"tools"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// ListToolsRequest is the params body of tools/list.
type ListToolsRequest struct {
	Cursor *string `json:"cursor,omitempty"`
}

// CallToolRequest is the params body of tools/call.
type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ContentType discriminates tool response content blocks.
type ContentType string

const (
	// ContentTypeText is a plain text content block.
	ContentTypeText ContentType = "text"
)

// Content is a single block of a tool response.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// NewTextContent creates a text content block.
func NewTextContent(text string) *Content {
	return &Content{
		Type: ContentTypeText,
		Text: text,
	}
}

// ToolResponse is the result body of tools/call.
type ToolResponse struct {
	Content []*Content `json:"content"`
	IsError bool       `json:"isError,omitempty"`
}

// NewToolResponse creates a tool response from the given content blocks.
func NewToolResponse(content ...*Content) *ToolResponse {
	return &ToolResponse{
		Content: content,
	}
}

// NewToolResponseText creates a tool response holding a single text block.
func NewToolResponseText(text string) *ToolResponse {
	return NewToolResponse(NewTextContent(text))
}

// TextContent concatenates the text blocks of the response. It returns an
// empty string when the response carries no text.
func (r *ToolResponse) TextContent() string {
	var out string
	for _, c := range r.Content {
		if c == nil || c.Type != ContentTypeText {
			continue
		}
		out += c.Text
	}
	return out
}

func unmarshalResult[T any](raw json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal result")
	}
	return &out, nil
}
