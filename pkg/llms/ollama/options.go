package ollama

import (
	"github.com/therealnoof/mcp-server-lab/pkg/llms/ollama/internal/ollamaclient"
)

type options struct {
	model      string
	baseURL    string
	httpClient ollamaclient.Doer
}

// Option is an option for the Ollama LLM.
type Option func(*options)

// WithModel sets the model name, e.g. "llama3.1:8b".
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithBaseURL sets the Ollama server URL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client ollamaclient.Doer) Option {
	return func(o *options) {
		o.httpClient = client
	}
}
