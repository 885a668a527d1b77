package tools_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/tools"
)

func strPtr(s string) *string { return &s }

func Test_ToLLMTool(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ip_address": map[string]any{"type": "string"},
		},
		"required": []any{"ip_address"},
	}
	def := mcp.Tool{
		Name:        "check_ip_reputation",
		Description: strPtr("Check an IP address against threat intelligence."),
		InputSchema: schema,
	}

	converted := tools.ToLLMTool(def)
	assert.Equal(t, "function", converted.Type)
	require.NotNil(t, converted.Function)
	assert.Equal(t, "check_ip_reputation", converted.Function.Name)
	assert.Equal(t, "Check an IP address against threat intelligence.", converted.Function.Description)

	// The parameter schema passes through untouched.
	assert.Equal(t, schema, converted.Function.Parameters)

	// Conversion is pure: converting again yields the same result.
	assert.Equal(t, converted, tools.ToLLMTool(def))
}

func Test_ToLLMTool_MissingDescription(t *testing.T) {
	converted := tools.ToLLMTool(mcp.Tool{Name: "get_recent_alerts"})
	assert.Equal(t, "get_recent_alerts", converted.Function.Name)
	assert.Equal(t, "get_recent_alerts", converted.Function.Description)
	assert.Nil(t, converted.Function.Parameters)
}

func Test_ToLLMTools_Total(t *testing.T) {
	defs := make([]mcp.Tool, 0, 10)
	for i := 0; i < 10; i++ {
		defs = append(defs, mcp.Tool{
			Name:        fmt.Sprintf("tool_%d", i),
			InputSchema: map[string]any{"type": "object"},
		})
	}

	converted := tools.ToLLMTools(defs)
	require.Len(t, converted, len(defs))
	for i, def := range defs {
		assert.Equal(t, def.Name, converted[i].Function.Name)
	}

	assert.Empty(t, tools.ToLLMTools(nil))
}

type fakeCaller struct {
	resp *mcp.ToolResponse
	err  error

	lastName string
	lastArgs any
}

func (c *fakeCaller) CallTool(_ context.Context, name string, arguments any) (*mcp.ToolResponse, error) {
	c.lastName = name
	c.lastArgs = arguments
	return c.resp, c.err
}

func Test_McpClientTool_Call(t *testing.T) {
	caller := &fakeCaller{resp: mcp.NewToolResponseText(`{"alert_count": 3}`)}
	tool := tools.NewMcpClientTool(caller, mcp.Tool{
		Name:        "get_recent_alerts",
		Description: strPtr("Retrieve the most recent security alerts."),
	})

	assert.Equal(t, "get_recent_alerts", tool.Name())
	assert.Equal(t, "Retrieve the most recent security alerts.", tool.Description())

	out, err := tool.Call(context.Background(), `{"limit": 3}`)
	require.NoError(t, err)
	assert.Equal(t, `{"alert_count": 3}`, out)
	assert.Equal(t, "get_recent_alerts", caller.lastName)
	assert.Equal(t, map[string]any{"limit": float64(3)}, caller.lastArgs)
}

func Test_McpClientTool_CallErrors(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection reset")}
	tool := tools.NewMcpClientTool(caller, mcp.Tool{Name: "get_recent_alerts"})

	_, err := tool.Call(context.Background(), "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tool "get_recent_alerts" failed`)

	errResp := mcp.NewToolResponseText("Alert ALT-999 not found")
	errResp.IsError = true
	caller = &fakeCaller{resp: errResp}
	tool = tools.NewMcpClientTool(caller, mcp.Tool{Name: "get_alert_details"})

	_, err = tool.Call(context.Background(), `{"alert_id":"ALT-999"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Alert ALT-999 not found")
}

func Test_GetDescriptions(t *testing.T) {
	caller := &fakeCaller{}
	alerts := tools.NewMcpClientTool(caller, mcp.Tool{
		Name:        "get_recent_alerts",
		Description: strPtr("Retrieve the most recent security alerts."),
	})
	reputation := tools.NewMcpClientTool(caller, mcp.Tool{
		Name:        "check_ip_reputation",
		Description: strPtr("Check an IP address against threat intelligence."),
	})

	out := tools.GetDescriptions(alerts, reputation)
	assert.Contains(t, out, "get_recent_alerts")
	assert.Contains(t, out, "check_ip_reputation")
}
