package agent_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/therealnoof/mcp-server-lab/agent"
	"github.com/therealnoof/mcp-server-lab/chatmodel"
	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/mocks/mockllms"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/store"
)

// fakeProvider is an in-memory ToolProvider.
type fakeProvider struct {
	tools   []mcp.Tool
	listErr error
	callFn  func(ctx context.Context, name string, args any) (*mcp.ToolResponse, error)

	mu    sync.Mutex
	calls []string
}

func (p *fakeProvider) ListAllTools(_ context.Context) ([]mcp.Tool, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.tools, nil
}

func (p *fakeProvider) CallTool(ctx context.Context, name string, args any) (*mcp.ToolResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, name)
	p.mu.Unlock()
	if p.callFn != nil {
		return p.callFn(ctx, name, args)
	}
	return mcp.NewToolResponseText("ok"), nil
}

func (p *fakeProvider) callNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.calls...)
}

func strPtr(s string) *string { return &s }

func alertCatalog() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "get_recent_alerts",
			Description: strPtr("Retrieve the most recent security alerts."),
			InputSchema: map[string]any{"type": "object"},
		},
		{
			Name:        "check_ip_reputation",
			Description: strPtr("Check an IP address against threat intelligence."),
			InputSchema: map[string]any{"type": "object"},
		},
	}
}

func newOllamaMock(ctrl *gomock.Controller) *mockllms.MockModel {
	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOllama).AnyTimes()
	mockLLM.EXPECT().GetName().Return("llama3.1:8b").AnyTimes()
	return mockLLM
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: calls}},
	}
}

func Test_NewAnalyst_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{}
	mockLLM := newOllamaMock(ctrl)

	_, err := agent.NewAnalyst(nil, provider)
	assert.EqualError(t, err, "reasoning model is required")

	_, err = agent.NewAnalyst(mockLLM, nil)
	assert.EqualError(t, err, "tool provider is required")

	plain := mockllms.NewMockModel(ctrl)
	plain.EXPECT().GetProviderType().Return(llms.ProviderType("UNKNOWN")).AnyTimes()
	plain.EXPECT().GetName().Return("plain").AnyTimes()
	_, err = agent.NewAnalyst(plain, provider)
	assert.EqualError(t, err, `model "plain" does not support function calling`)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)
	assert.Equal(t, "SOC Analyst", a.Name())
	assert.NotEmpty(t, a.Description())
}

func Test_Analyst_CompletesWithoutTools(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("No open alerts. Risk level: LOW."), nil)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Anything suspicious today?")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "No open alerts. Risk level: LOW.", res.Content)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.ToolCalls)
	assert.Empty(t, provider.callNames())

	// system, user, final answer
	msgs := res.Transcript.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, llms.RoleSystem, msgs[0].Role)
	assert.Equal(t, llms.RoleHuman, msgs[1].Role)
	assert.Equal(t, llms.RoleAI, msgs[2].Role)
}

func Test_Analyst_EmptyToolCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{}
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("Nothing to investigate without tooling."), nil)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Anything suspicious today?")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeCompleted, res.Outcome)
	assert.Equal(t, 0, res.ToolCalls)
	assert.Empty(t, provider.callNames())
}

func Test_Analyst_SingleToolRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var gotArgs any
	provider := &fakeProvider{
		tools: alertCatalog(),
		callFn: func(_ context.Context, name string, args any) (*mcp.ToolResponse, error) {
			gotArgs = args
			return mcp.NewToolResponseText(`{"alert_count": 2}`), nil
		},
	}

	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, messages, 2)
			return toolCallResponse(llms.ToolCall{
				FunctionCall: &llms.FunctionCall{
					Name:      "get_recent_alerts",
					Arguments: `{"limit": 2}`,
				},
			}), nil
		})
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			// system, user, tool request, tool result
			require.Len(t, messages, 4)
			assert.Equal(t, llms.RoleAI, messages[2].Role)
			assert.Equal(t, llms.RoleTool, messages[3].Role)
			resp, ok := messages[3].Parts[0].(llms.ToolCallResponse)
			require.True(t, ok)
			assert.Equal(t, "get_recent_alerts_0", resp.ToolCallID)
			assert.Equal(t, `{"alert_count": 2}`, resp.Content)
			return textResponse("2 alerts reviewed. Risk level: MEDIUM."), nil
		})

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Review recent alerts.")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeCompleted, res.Outcome)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 1, res.ToolCalls)
	assert.Equal(t, []string{"get_recent_alerts"}, provider.callNames())
	assert.Equal(t, map[string]any{"limit": float64(2)}, gotArgs)
}

func Test_Analyst_KeepsReasoningTextWithToolCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}

	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{
			Choices: []*llms.ContentChoice{{
				Content: "Let me pull the alert feed first.",
				ToolCalls: []llms.ToolCall{{
					FunctionCall: &llms.FunctionCall{
						Name:      "get_recent_alerts",
						Arguments: `{"limit": 5}`,
					},
				}},
			}},
		}, nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			// The partial reasoning must arrive back alongside the call.
			require.Len(t, messages, 4)
			assistant := messages[2]
			assert.Equal(t, llms.RoleAI, assistant.Role)

			var text string
			for _, p := range assistant.Parts {
				if tp, ok := p.(llms.TextContent); ok {
					text = tp.Text
				}
			}
			assert.Equal(t, "Let me pull the alert feed first.", text)
			require.Len(t, assistant.ToolCalls(), 1)
			assert.Equal(t, "get_recent_alerts", assistant.ToolCalls()[0].FunctionCall.Name)
			return textResponse("All clear. Risk level: LOW."), nil
		})

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Review recent alerts.")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeCompleted, res.Outcome)

	// The transcript itself records both parts on the same message.
	msgs := res.Transcript.Messages()
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Len(t, msgs[2].Parts, 2)
}

func Test_Analyst_ToolFailureContainment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{
		tools: alertCatalog(),
		callFn: func(_ context.Context, name string, _ any) (*mcp.ToolResponse, error) {
			if name == "check_ip_reputation" {
				return nil, errors.New("intel feed unavailable")
			}
			return mcp.NewToolResponseText("alerts: none"), nil
		},
	}

	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "get_recent_alerts", Arguments: "{}"}},
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "check_ip_reputation", Arguments: `{"ip_address":"185.220.101.45"}`}},
		), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			// The failed call is folded in as a result, in request order.
			require.Len(t, messages, 5)
			okResp := messages[3].Parts[0].(llms.ToolCallResponse)
			failResp := messages[4].Parts[0].(llms.ToolCallResponse)
			assert.Equal(t, "alerts: none", okResp.Content)
			assert.Equal(t, "Tool execution error: intel feed unavailable", failResp.Content)
			return textResponse("Partial assessment."), nil
		})

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Investigate.")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeCompleted, res.Outcome)
	assert.Equal(t, 2, res.ToolCalls)
}

func Test_Analyst_InBandToolError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{
		tools: alertCatalog(),
		callFn: func(_ context.Context, _ string, _ any) (*mcp.ToolResponse, error) {
			resp := mcp.NewToolResponseText("Alert ALT-999 not found")
			resp.IsError = true
			return resp, nil
		},
	}

	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "get_alert_details", Arguments: `{"alert_id":"ALT-999"}`}},
		), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			resp := messages[3].Parts[0].(llms.ToolCallResponse)
			assert.Equal(t, "Tool execution error: Alert ALT-999 not found", resp.Content)
			return textResponse("No such alert."), nil
		})

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Show me ALT-999.")
	require.NoError(t, err)
}

func Test_Analyst_EmptyToolContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{
		tools: alertCatalog(),
		callFn: func(_ context.Context, _ string, _ any) (*mcp.ToolResponse, error) {
			return mcp.NewToolResponse(), nil
		},
	}

	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "get_recent_alerts", Arguments: "{}"}},
		), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			resp := messages[3].Parts[0].(llms.ToolCallResponse)
			assert.Equal(t, agent.ToolResultNoContent, resp.Content)
			return textResponse("Nothing to report."), nil
		})

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Investigate.")
	require.NoError(t, err)
}

func Test_Analyst_MalformedArgumentsDegradeToEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var gotArgs any
	provider := &fakeProvider{
		tools: alertCatalog(),
		callFn: func(_ context.Context, _ string, args any) (*mcp.ToolResponse, error) {
			gotArgs = args
			return mcp.NewToolResponseText("ok"), nil
		},
	}

	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "get_recent_alerts", Arguments: `{"limit": oops`}},
		), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		Return(textResponse("Done."), nil)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Investigate.")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, gotArgs)
}

func Test_Analyst_Exhaustion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}

	const maxIterations = 3
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(maxIterations).
		Return(toolCallResponse(
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "get_recent_alerts", Arguments: "{}"}},
		), nil)

	a, err := agent.NewAnalyst(mockLLM, provider,
		agent.WithMaxIterations(maxIterations))
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Investigate.")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeExhausted, res.Outcome)
	assert.Equal(t, agent.ExhaustedContent, res.Content)
	assert.Equal(t, maxIterations, res.Iterations)
	assert.Equal(t, maxIterations, res.ToolCalls)
	require.Len(t, provider.callNames(), maxIterations)
}

func Test_Analyst_ToolDiscoveryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{listErr: errors.New("connection refused")}
	mockLLM := newOllamaMock(ctrl)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Investigate.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover tools from tool provider")
}

func Test_Analyst_EngineFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("model not loaded"))

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Investigate.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate content from reasoning engine")
}

func Test_Analyst_EmptyChoicesRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	empty := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(2).
		Return(&llms.ContentResponse{}, nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(empty).
		Return(textResponse("All clear."), nil)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Investigate.")
	require.NoError(t, err)
	assert.Equal(t, "All clear.", res.Content)
}

func Test_Analyst_EmptyChoicesExhaustRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(agent.DefaultMaxRetries).
		Return(&llms.ContentResponse{}, nil)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Investigate.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func Test_Analyst_ConcurrentResultsKeepRequestOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Later calls finish first; results must still land in request order.
	provider := &fakeProvider{
		tools: alertCatalog(),
		callFn: func(_ context.Context, name string, args any) (*mcp.ToolResponse, error) {
			m, _ := args.(map[string]any)
			delay, _ := m["delay_ms"].(float64)
			time.Sleep(time.Duration(delay) * time.Millisecond)
			return mcp.NewToolResponseText("result for " + name), nil
		},
	}

	calls := make([]llms.ToolCall, 0, 3)
	for i, delay := range []int{30, 15, 0} {
		calls = append(calls, llms.ToolCall{
			FunctionCall: &llms.FunctionCall{
				Name:      fmt.Sprintf("tool_%d", i),
				Arguments: fmt.Sprintf(`{"delay_ms": %d}`, delay),
			},
		})
	}

	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(calls...), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, messages, 6)
			for i := 0; i < 3; i++ {
				resp := messages[3+i].Parts[0].(llms.ToolCallResponse)
				assert.Equal(t, fmt.Sprintf("tool_%d", i), resp.Name)
				assert.Equal(t, fmt.Sprintf("tool_%d_%d", i, i), resp.ToolCallID)
				assert.Equal(t, fmt.Sprintf("result for tool_%d", i), resp.Content)
			}
			return textResponse("Correlated."), nil
		})

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Correlate findings.")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ToolCalls)
}

func Test_Analyst_StoreRetainsHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("First answer."), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			// system, prior user, prior answer, new user
			require.Len(t, messages, 4)
			assert.Equal(t, llms.RoleAI, messages[2].Role)
			return textResponse("Second answer."), nil
		})

	memStore := store.NewMemoryStore()
	a, err := agent.NewAnalyst(mockLLM, provider, agent.WithStore(memStore))
	require.NoError(t, err)

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat-1", nil))

	_, err = a.Run(ctx, "First question.")
	require.NoError(t, err)
	_, err = a.Run(ctx, "Second question.")
	require.NoError(t, err)
}

func Test_Analyst_StoreIgnoredWithoutChatContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("First answer."), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			// No chat context: nothing carries over between runs.
			require.Len(t, messages, 2)
			return textResponse("Second answer."), nil
		})

	memStore := store.NewMemoryStore()
	a, err := agent.NewAnalyst(mockLLM, provider, agent.WithStore(memStore))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a.Run(ctx, "First question.")
	require.NoError(t, err)
	_, err = a.Run(ctx, "Second question.")
	require.NoError(t, err)

	// A later run with a chat context must not inherit the chat-less history.
	assert.Empty(t, memStore.Messages(chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("chat-1", nil))))
}

func Test_Analyst_CustomSystemPrompt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			text := messages[0].Parts[0].(llms.TextContent)
			assert.Equal(t, "Answer in one word.", text.Text)
			return textResponse("LOW"), nil
		})

	a, err := agent.NewAnalyst(mockLLM, provider,
		agent.WithSystemPrompt("Answer in one word."))
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Risk level?")
	require.NoError(t, err)
}

func Test_Analyst_SkipsToolCallWithoutFunction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			llms.ToolCall{ID: "broken"},
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "get_recent_alerts", Arguments: "{}"}},
		), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		Return(textResponse("Done."), nil)

	a, err := agent.NewAnalyst(mockLLM, provider)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Investigate.")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_recent_alerts"}, provider.callNames())
	assert.Equal(t, 1, res.ToolCalls)
}

func Test_Analyst_Callbacks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := &fakeProvider{tools: alertCatalog()}
	mockLLM := newOllamaMock(ctrl)
	first := mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			llms.ToolCall{FunctionCall: &llms.FunctionCall{Name: "get_recent_alerts", Arguments: "{}"}},
		), nil)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		Return(textResponse("Done."), nil)

	var sb strings.Builder
	a, err := agent.NewAnalyst(mockLLM, provider,
		agent.WithCallback(agent.NewPrinterCallback(&sb)))
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "Investigate.")
	require.NoError(t, err)

	out := sb.String()
	assert.Contains(t, out, "Analyst Start: SOC Analyst")
	assert.Contains(t, out, "[Iteration 1/10] Querying LLM...")
	assert.Contains(t, out, "[Iteration 2/10] Querying LLM...")
	assert.Contains(t, out, "Tool: get_recent_alerts")
	assert.Contains(t, out, "Analyst End: SOC Analyst (completed after 2 iterations)")
}
