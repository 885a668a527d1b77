// Package openai provides an llms.Model backed by the OpenAI chat
// completions API, or any OpenAI-compatible endpoint.
package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
)

// LLM is an OpenAI-backed model.
type LLM struct {
	client openaisdk.Client
	model  string
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, errors.New("OpenAI API token is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &LLM{
		client: openaisdk.NewClient(reqOpts...),
		model:  values.StringsCoalesce(o.model, DefaultChatModel),
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		msg, err := convertMessage(mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msg)
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(values.StringsCoalesce(opts.Model, o.model)),
		Messages: chatMsgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openaisdk.Float(opts.Temperature)
	}
	if opts.Seed > 0 {
		params.Seed = openaisdk.Int(int64(opts.Seed))
	}
	for _, t := range opts.Tools {
		if t.Function == nil {
			continue
		}
		params.Tools = append(params.Tools, openaisdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openaisdk.String(t.Function.Description),
			Parameters:  toFunctionParameters(t.Function.Parameters),
		}))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}

	resp := &llms.ContentResponse{}
	for _, c := range completion.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		resp.Choices = append(resp.Choices, choice)
	}
	return resp, nil
}

func convertMessage(mc llms.Message) (openaisdk.ChatCompletionMessageParamUnion, error) {
	switch mc.Role {
	case llms.RoleSystem:
		return openaisdk.SystemMessage(mc.GetContent()), nil
	case llms.RoleHuman:
		return openaisdk.UserMessage(mc.GetContent()), nil
	case llms.RoleAI:
		toolCalls := mc.ToolCalls()
		if len(toolCalls) == 0 {
			return openaisdk.AssistantMessage(mc.GetContent()), nil
		}
		assistant := openaisdk.ChatCompletionAssistantMessageParam{}
		if text := textParts(mc); text != "" {
			assistant.Content.OfString = openaisdk.String(text)
		}
		for _, tc := range toolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.FunctionCall.Name,
						Arguments: tc.FunctionCall.Arguments,
					},
				},
			})
		}
		return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}, nil
	case llms.RoleTool:
		for _, part := range mc.Parts {
			if p, ok := part.(llms.ToolCallResponse); ok {
				return openaisdk.ToolMessage(p.Content, p.ToolCallID), nil
			}
		}
		return openaisdk.ToolMessage(mc.GetContent(), ""), nil
	default:
		return openaisdk.ChatCompletionMessageParamUnion{}, errors.WithMessagef(llms.ErrUnexpectedRole, "%s", mc.Role)
	}
}

// textParts joins only the text parts of a message, leaving tool-call parts
// to the dedicated field.
func textParts(mc llms.Message) string {
	var sb strings.Builder
	for _, part := range mc.Parts {
		if p, ok := part.(llms.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// toFunctionParameters renders the schema into the map shape the SDK wants.
func toFunctionParameters(parameters any) shared.FunctionParameters {
	if m, ok := parameters.(map[string]any); ok {
		return shared.FunctionParameters(m)
	}
	encoded, err := json.Marshal(parameters)
	if err != nil {
		return shared.FunctionParameters{}
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err != nil {
		return shared.FunctionParameters{}
	}
	return shared.FunctionParameters(m)
}
