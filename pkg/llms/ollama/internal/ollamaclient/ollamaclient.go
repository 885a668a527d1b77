// Package ollamaclient implements the native Ollama chat API with tool
// calling support.
package ollamaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultChatModel = "llama3.1:8b"
)

// ErrEmptyResponse is returned when the Ollama API returns an empty response.
var ErrEmptyResponse = errors.New("empty response")

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Ollama API.
type Client struct {
	Model string

	baseURL    string
	httpClient Doer
}

// New returns a new Ollama client.
func New(model string, baseURL string, httpClient Doer) *Client {
	c := &Client{
		Model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// Message is a chat message in the native Ollama format. Tool call arguments
// are a JSON object, not an encoded string.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its arguments.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Tool is a function definition offered to the model.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one callable function.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// Options are the model sampling options.
type Options struct {
	Temperature float64  `json:"temperature,omitempty"`
	Seed        int      `json:"seed,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ChatRequest is the /api/chat request body.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
	Options  *Options  `json:"options,omitempty"`
}

// ChatResponse is the /api/chat response body.
type ChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// CreateChat sends a chat request.
func (c *Client) CreateChat(ctx context.Context, r *ChatRequest) (*ChatResponse, error) {
	if r.Model == "" {
		if c.Model == "" {
			r.Model = DefaultChatModel
		} else {
			r.Model = c.Model
		}
	}
	return c.createChat(ctx, r)
}

func (c *Client) createChat(ctx context.Context, payload *ChatRequest) (*ChatResponse, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if r.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API returned unexpected status code: %d", r.StatusCode)

		var errResp errorMessage
		if err := json.NewDecoder(r.Body).Decode(&errResp); err != nil {
			return nil, errors.New(msg)
		}
		return nil, errors.Errorf("%s: %s", msg, errResp.Error)
	}

	var response ChatResponse
	if err := json.NewDecoder(r.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &response, nil
}
