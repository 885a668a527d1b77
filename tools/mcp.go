package tools

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/pkg/llmutils"
)

// ToLLMTool converts one MCP tool definition into the function-calling shape
// the models consume. The input schema passes through untouched.
func ToLLMTool(def mcp.Tool) llms.Tool {
	var description string
	if def.Description != nil {
		description = *def.Description
	}
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        def.Name,
			Description: values.StringsCoalesce(description, def.Name),
			Parameters:  def.InputSchema,
		},
	}
}

// ToLLMTools converts a discovered MCP catalog. Every definition converts;
// the result preserves catalog order.
func ToLLMTools(defs []mcp.Tool) []llms.Tool {
	out := make([]llms.Tool, len(defs))
	for i, def := range defs {
		out[i] = ToLLMTool(def)
	}
	return out
}

// McpCaller invokes tools on an MCP server. *mcp.Client satisfies it.
type McpCaller interface {
	CallTool(ctx context.Context, name string, arguments any) (*mcp.ToolResponse, error)
}

// McpClientTool exposes one remote MCP tool as an ITool.
type McpClientTool struct {
	client      McpCaller
	name        string
	description string
	parameters  any
}

// NewMcpClientTool wraps a discovered tool definition for invocation through
// the given client.
func NewMcpClientTool(client McpCaller, def mcp.Tool) *McpClientTool {
	var description string
	if def.Description != nil {
		description = *def.Description
	}
	return &McpClientTool{
		client:      client,
		name:        def.Name,
		description: description,
		parameters:  def.InputSchema,
	}
}

// Name implements ITool.
func (t *McpClientTool) Name() string {
	return t.name
}

// Description implements ITool.
func (t *McpClientTool) Description() string {
	return t.description
}

// Parameters implements ITool.
func (t *McpClientTool) Parameters() any {
	return t.parameters
}

// Call invokes the remote tool with raw JSON arguments and returns the
// concatenated text content.
func (t *McpClientTool) Call(ctx context.Context, input string) (string, error) {
	args := llmutils.DecodeArguments(input)
	resp, err := t.client.CallTool(ctx, t.name, args)
	if err != nil {
		return "", errors.Wrapf(err, "tool %q failed", t.name)
	}
	if resp.IsError {
		return "", errors.Newf("tool %q failed: %s", t.name, resp.TextContent())
	}
	return resp.TextContent(), nil
}
