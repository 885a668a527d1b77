package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/pkg/llms/openai"
)

func Test_New(t *testing.T) {
	_, err := openai.New()
	assert.EqualError(t, err, "OpenAI API token is required")

	model, err := openai.New(openai.WithToken("sk-test"))
	require.NoError(t, err)
	assert.Equal(t, openai.DefaultChatModel, model.GetName())
	assert.Equal(t, llms.ProviderOpenAI, model.GetProviderType())

	model, err = openai.New(openai.WithToken("sk-test"), openai.WithModel("gpt-4o"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model.GetName())
}

func Test_GenerateContent(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call_abc",
								"type": "function",
								"function": map[string]any{
									"name":      "check_ip_reputation",
									"arguments": `{"ip_address":"45.33.32.156"}`,
								},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	model, err := openai.New(
		openai.WithToken("sk-test"),
		openai.WithBaseURL(srv.URL),
	)
	require.NoError(t, err)

	resp, err := model.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "You are a SOC analyst."),
			llms.MessageFromTextParts(llms.RoleHuman, "Check 45.33.32.156"),
		},
		llms.WithTools([]llms.Tool{
			{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        "check_ip_reputation",
					Description: "Check an IP address against threat intelligence.",
					Parameters:  map[string]any{"type": "object"},
				},
			},
		}),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "tool_calls", resp.Choices[0].StopReason)
	require.Len(t, resp.Choices[0].ToolCalls, 1)

	tc := resp.Choices[0].ToolCalls[0]
	assert.Equal(t, "call_abc", tc.ID)
	assert.Equal(t, "function", tc.Type)
	assert.Equal(t, "check_ip_reputation", tc.FunctionCall.Name)
	assert.JSONEq(t, `{"ip_address":"45.33.32.156"}`, tc.FunctionCall.Arguments)

	assert.Equal(t, "gpt-4o-mini", gotReq["model"])
	msgs := gotReq["messages"].([]any)
	require.Len(t, msgs, 2)
	tools := gotReq["tools"].([]any)
	require.Len(t, tools, 1)
}

func Test_GenerateContent_ToolRoundTripMessages(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-2",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": "The IP hosts a known C2 server.",
					},
				},
			},
		})
	}))
	defer srv.Close()

	model, err := openai.New(openai.WithToken("sk-test"), openai.WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := model.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "Check 45.33.32.156"),
		llms.MessageFromParts(llms.RoleAI,
			llms.TextPart("Checking the reputation feed."),
			llms.ToolCall{
				ID:   "call_abc",
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      "check_ip_reputation",
					Arguments: `{"ip_address":"45.33.32.156"}`,
				},
			}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "call_abc",
			Name:       "check_ip_reputation",
			Content:    `{"is_malicious": true}`,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "The IP hosts a known C2 server.", resp.Choices[0].Content)

	msgs := gotReq["messages"].([]any)
	require.Len(t, msgs, 3)

	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	assert.Equal(t, "Checking the reputation feed.", assistant["content"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_abc", calls[0].(map[string]any)["id"])

	toolMsg := msgs[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_abc", toolMsg["tool_call_id"])
}

func Test_GenerateContent_UnexpectedRole(t *testing.T) {
	model, err := openai.New(openai.WithToken("sk-test"))
	require.NoError(t, err)

	_, err = model.GenerateContent(context.Background(), []llms.Message{
		{Role: llms.Role("weird")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, llms.ErrUnexpectedRole)
}
