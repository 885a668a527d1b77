// Package agent implements the investigation loop: discover tools from an
// MCP server, hand them to a reasoning model, execute the tool calls the
// model requests, and feed results back until the model produces a final
// assessment or the iteration budget runs out.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/chatmodel"
	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/pkg/llmutils"
	"github.com/therealnoof/mcp-server-lab/tools"
)

//go:generate mockgen -destination=../mocks/mockllms/llm_mock.gen.go -package mockllms github.com/therealnoof/mcp-server-lab/pkg/llms Model

var logger = xlog.NewPackageLogger("github.com/therealnoof/mcp-server-lab", "agent")

// DefaultSystemPrompt instructs the model to work like a SOC analyst.
const DefaultSystemPrompt = `You are a skilled SOC (Security Operations Center) analyst.
Your job is to investigate security alerts and provide threat assessments.

When investigating alerts, always follow this methodology:
1. Start by retrieving recent alerts to see what needs investigation
2. For each alert, identify the source IP addresses
3. Check the reputation of any external (non-private) IP addresses
4. Look up geolocation for suspicious IPs to understand their origin
5. Correlate findings across multiple alerts if the same IP appears multiple times
6. Provide a clear, structured threat assessment with:
   - Summary of findings
   - Risk level (LOW/MEDIUM/HIGH/CRITICAL)
   - Recommended actions (e.g., BLOCK, MONITOR, INVESTIGATE)

Private IP ranges (10.x.x.x, 192.168.x.x, 172.16-31.x.x) are internal
and generally less suspicious than external IPs from internet space.

Always be specific and reference the actual alert IDs and IP addresses in your analysis.`

// ExhaustedContent is returned when the iteration budget runs out before the
// model stops calling tools.
const ExhaustedContent = "Agent reached maximum iterations without completing analysis."

// ToolResultNoContent stands in for a tool result carrying no text, so the
// transcript stays complete.
const ToolResultNoContent = "Tool returned no content"

// DefaultMaxRetries bounds retries on empty model responses.
const DefaultMaxRetries = 3

// IAnalyst identifies an analyst to callbacks.
type IAnalyst interface {
	Name() string
	Description() string
}

// ToolProvider supplies the tool catalog and executes tool calls.
// *mcp.Client satisfies it.
type ToolProvider interface {
	ListAllTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, arguments any) (*mcp.ToolResponse, error)
}

// Outcome states how a run ended.
type Outcome string

const (
	// OutcomeCompleted means the model produced a final assessment.
	OutcomeCompleted Outcome = "completed"
	// OutcomeExhausted means the iteration budget ran out. This is a normal
	// outcome, not an error.
	OutcomeExhausted Outcome = "exhausted"
)

// Result is the outcome of one investigation run.
type Result struct {
	Outcome    Outcome
	Content    string
	Iterations int
	ToolCalls  int
	// Transcript is the full conversation record of the run.
	Transcript *Transcript
}

// Analyst drives investigations against a reasoning model and an MCP tool
// provider.
type Analyst struct {
	name        string
	description string
	llm         llms.Model
	provider    ToolProvider
	cfg         *Config
}

// NewAnalyst creates an analyst. The tool catalog is discovered from the
// provider once per Run.
func NewAnalyst(llm llms.Model, provider ToolProvider, opts ...Option) (*Analyst, error) {
	if llm == nil {
		return nil, errors.New("reasoning model is required")
	}
	if provider == nil {
		return nil, errors.New("tool provider is required")
	}
	if !llm.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
		return nil, errors.Newf("model %q does not support function calling", llm.GetName())
	}

	return &Analyst{
		name:        "SOC Analyst",
		description: "Investigates security alerts and produces threat assessments",
		llm:         llm,
		provider:    provider,
		cfg:         NewConfig(opts...),
	}, nil
}

// Name implements IAnalyst.
func (a *Analyst) Name() string {
	return a.name
}

// Description implements IAnalyst.
func (a *Analyst) Description() string {
	return a.description
}

// WithName overrides the analyst name.
func (a *Analyst) WithName(name string) *Analyst {
	a.name = name
	return a
}

// Run executes one investigation: discover tools, then loop asking the model
// what to do next and executing the tool calls it requests, until the model
// answers in plain text or the iteration budget is spent. Tool failures are
// folded into the transcript as results; only the model and the tool provider
// themselves can fail a run.
func (a *Analyst) Run(ctx context.Context, query string) (*Result, error) {
	cfg := a.cfg
	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnRunStart(ctx, a, query)
	}

	result, err := a.run(ctx, cfg, query)
	if err != nil {
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnRunError(ctx, a, query, err)
		}
		return nil, err
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnRunEnd(ctx, a, result)
	}
	return result, nil
}

func (a *Analyst) run(ctx context.Context, cfg *Config, query string) (*Result, error) {
	defs, err := a.provider.ListAllTools(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to discover tools from tool provider")
	}
	toolDefs := tools.ToLLMTools(defs)

	logger.ContextKV(ctx, xlog.DEBUG,
		"analyst", a.name,
		"tools", len(toolDefs),
	)

	systemPrompt := values.StringsCoalesce(cfg.SystemPrompt, DefaultSystemPrompt)
	transcript := NewTranscript(llms.MessageFromTextParts(llms.RoleSystem, systemPrompt))
	// History is kept per chat; a run without a chat context stays stateless.
	useStore := cfg.Store != nil && chatmodel.GetChatContext(ctx) != nil
	if useStore {
		transcript.Append(cfg.Store.Messages(ctx)...)
	}
	userMessage := llms.MessageFromTextParts(llms.RoleHuman, query)
	transcript.Append(userMessage)

	callOpts := cfg.GetCallOptions(llms.WithTools(toolDefs))

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	var totalToolCalls int
	retryCount := 0

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnIteration(ctx, a, iteration, maxIterations)
		}

		messages := transcript.Messages()
		logger.ContextKV(ctx, xlog.DEBUG,
			"analyst", a.name,
			"iteration", iteration,
			"messages", len(messages),
			"bytes_sent", llmutils.CountMessagesContentSize(messages),
		)

		resp, err := a.llm.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to generate content from reasoning engine")
		}
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnLLMResponse(ctx, a, resp)
		}

		if len(resp.Choices) == 0 {
			retryCount++
			if retryCount >= DefaultMaxRetries {
				return nil, errors.Newf("reasoning engine returned empty response after %d retries", retryCount)
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"analyst", a.name,
				"status", "retrying_empty_response",
				"retry_count", retryCount,
			)
			continue
		}
		retryCount = 0

		choice := resp.Choices[0]
		toolCalls := normalizeToolCalls(choice.ToolCalls)

		if len(toolCalls) == 0 {
			// The model answered in plain text: the investigation is done.
			content := choice.Content
			transcript.Append(llms.MessageFromTextParts(llms.RoleAI, content))

			if useStore {
				_ = cfg.Store.Add(ctx, userMessage, llms.MessageFromTextParts(llms.RoleAI, content))
			}

			return &Result{
				Outcome:    OutcomeCompleted,
				Content:    content,
				Iterations: iteration,
				ToolCalls:  totalToolCalls,
				Transcript: transcript,
			}, nil
		}

		// Partial reasoning returned alongside the calls stays on the
		// transcript so later turns can see it.
		assistantMsg := llms.MessageFromToolCalls(llms.RoleAI, toolCalls...)
		if choice.Content != "" {
			assistantMsg.Parts = append([]llms.ContentPart{llms.TextPart(choice.Content)}, assistantMsg.Parts...)
		}
		transcript.Append(assistantMsg)

		responses := a.executeToolCalls(ctx, cfg, toolCalls)
		transcript.Append(responses...)
		totalToolCalls += len(toolCalls)
	}

	logger.ContextKV(ctx, xlog.WARNING,
		"analyst", a.name,
		"status", "max_iterations_reached",
		"iterations", maxIterations,
	)

	return &Result{
		Outcome:    OutcomeExhausted,
		Content:    ExhaustedContent,
		Iterations: maxIterations,
		ToolCalls:  totalToolCalls,
		Transcript: transcript,
	}, nil
}

// normalizeToolCalls fills in missing IDs and types so the transcript pairs
// every tool result with its request.
func normalizeToolCalls(toolCalls []llms.ToolCall) []llms.ToolCall {
	out := make([]llms.ToolCall, 0, len(toolCalls))
	for i, toolCall := range toolCalls {
		if toolCall.FunctionCall == nil {
			continue
		}
		if toolCall.ID == "" {
			toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, i)
		}
		toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
		out = append(out, toolCall)
	}
	return out
}

// executeToolCalls runs all requested tool calls concurrently and returns one
// tool message per call, in the order the model requested them. Failures
// become result text; they never abort the run.
func (a *Analyst) executeToolCalls(ctx context.Context, cfg *Config, toolCalls []llms.ToolCall) []llms.Message {
	type toolCallResult struct {
		content string
		index   int
	}

	resultChan := make(chan toolCallResult, len(toolCalls))

	var wg sync.WaitGroup
	wg.Add(len(toolCalls))

	for i, toolCall := range toolCalls {
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()

			toolName := tc.FunctionCall.Name
			// Malformed or empty arguments degrade to an empty set rather
			// than failing the call.
			args := llmutils.DecodeArguments(tc.FunctionCall.Arguments)

			if cfg.CallbackHandler != nil {
				cfg.CallbackHandler.OnToolCallStart(ctx, toolName, tc.FunctionCall.Arguments)
			}

			content := a.callTool(ctx, toolName, args)

			if cfg.CallbackHandler != nil {
				cfg.CallbackHandler.OnToolCallEnd(ctx, toolName, tc.FunctionCall.Arguments, content)
			}

			resultChan <- toolCallResult{
				content: content,
				index:   index,
			}
		}(i, toolCall)
	}

	wg.Wait()
	close(resultChan)

	contents := make([]string, len(toolCalls))
	for result := range resultChan {
		contents[result.index] = result.content
	}

	messages := make([]llms.Message, len(toolCalls))
	for i, toolCall := range toolCalls {
		messages[i] = llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: toolCall.ID,
			Name:       toolCall.FunctionCall.Name,
			Content:    contents[i],
		})
	}
	return messages
}

func (a *Analyst) callTool(ctx context.Context, name string, args map[string]any) string {
	resp, err := a.provider.CallTool(ctx, name, args)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"analyst", a.name,
			"status", "tool_call_failed",
			"tool", name,
			"err", err.Error(),
		)
		return "Tool execution error: " + err.Error()
	}
	if resp.IsError {
		return "Tool execution error: " + resp.TextContent()
	}

	text := resp.TextContent()
	if text == "" {
		return ToolResultNoContent
	}
	return text
}
