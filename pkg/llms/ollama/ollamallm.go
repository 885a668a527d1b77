// Package ollama provides an llms.Model backed by a local Ollama server
// using the native chat API.
package ollama

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/pkg/llms/ollama/internal/ollamaclient"
)

const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleTool      = "tool"
)

// LLM is an Ollama-backed model.
type LLM struct {
	client *ollamaclient.Client
}

var _ llms.Model = (*LLM)(nil)

// New returns a new Ollama LLM.
func New(opts ...Option) *LLM {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &LLM{
		client: ollamaclient.New(o.model, o.baseURL, o.httpClient),
	}
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	if o.client.Model == "" {
		return ollamaclient.DefaultChatModel
	}
	return o.client.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOllama
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs := make([]ollamaclient.Message, 0, len(messages))
	for _, mc := range messages {
		msg, err := convertMessage(mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msg)
	}

	req := &ollamaclient.ChatRequest{
		Model:    opts.Model,
		Messages: chatMsgs,
		Tools:    toolsFromTools(opts.Tools),
		Stream:   false,
	}
	if opts.JSONMode {
		req.Format = "json"
	}
	if opts.Temperature != 0 || opts.Seed != 0 || opts.MaxTokens != 0 || len(opts.StopWords) > 0 {
		req.Options = &ollamaclient.Options{
			Temperature: opts.Temperature,
			Seed:        opts.Seed,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.StopWords,
		}
	}

	resp, err := o.client.CreateChat(ctx, req)
	if err != nil {
		return nil, err
	}

	choice := &llms.ContentChoice{
		Content:    resp.Message.Content,
		StopReason: resp.DoneReason,
	}
	for _, tc := range resp.Message.ToolCalls {
		choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: string(tc.Function.Arguments),
			},
		})
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{choice},
	}, nil
}

func convertMessage(mc llms.Message) (ollamaclient.Message, error) {
	msg := ollamaclient.Message{}
	switch mc.Role {
	case llms.RoleSystem:
		msg.Role = RoleSystem
	case llms.RoleHuman:
		msg.Role = RoleUser
	case llms.RoleAI:
		msg.Role = RoleAssistant
	case llms.RoleTool:
		msg.Role = RoleTool
	default:
		return msg, errors.WithMessagef(llms.ErrUnexpectedRole, "%s", mc.Role)
	}

	for _, part := range mc.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			if msg.Content != "" {
				msg.Content += "\n"
			}
			msg.Content += p.Text
		case llms.ToolCall:
			msg.ToolCalls = append(msg.ToolCalls, ollamaclient.ToolCall{
				Function: ollamaclient.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: argumentsToRaw(p.FunctionCall.Arguments),
				},
			})
		case llms.ToolCallResponse:
			msg.Content = p.Content
		}
	}
	return msg, nil
}

// argumentsToRaw keeps valid JSON as-is; anything else is passed through as a
// JSON string so the request still encodes.
func argumentsToRaw(arguments string) json.RawMessage {
	if arguments == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	encoded, _ := json.Marshal(arguments)
	return encoded
}

func toolsFromTools(list []llms.Tool) []ollamaclient.Tool {
	if len(list) == 0 {
		return nil
	}
	out := make([]ollamaclient.Tool, 0, len(list))
	for _, t := range list {
		if t.Function == nil {
			continue
		}
		out = append(out, ollamaclient.Tool{
			Type: "function",
			Function: ollamaclient.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}
