// Package tools defines the tool interfaces used by agents, and the adapters
// that bridge MCP tool catalogs into the calling convention the reasoning
// models expect.
package tools

import (
	"context"

	"github.com/therealnoof/mcp-server-lab/pkg/llmutils"
)

//go:generate mockgen -source=tools.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// McpServerRegistrator registers tool handlers on an MCP server.
type McpServerRegistrator interface {
	RegisterTool(name string, description string, handler any) error
}

// ITool is a tool for the llm agent to interact with different applications.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() any

	// Call executes the tool with the given input and returns the result.
	// If the tool fails to parse the input, it should return
	// chatmodel.ErrFailedUnmarshalInput.
	Call(context.Context, string) (string, error)
}

// Callback observes tool execution.
type Callback interface {
	OnToolStart(context.Context, ITool, string)
	OnToolEnd(context.Context, ITool, string, string)
	OnToolError(context.Context, ITool, string, error)
}

// Tool is a typed tool with structured input and output.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

// IMCPTool is a tool that can also register itself with an MCP server.
type IMCPTool interface {
	ITool
	RegisterMCP(registrator McpServerRegistrator) error
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions renders a JSON summary of the tools, suitable for
// embedding in a prompt.
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
