package openai

const (
	// DefaultChatModel is used when no model is configured.
	DefaultChatModel = "gpt-4o-mini"
)

type options struct {
	model   string
	token   string
	baseURL string
}

// Option is an option for the OpenAI LLM.
type Option func(*options)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithToken sets the API token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithBaseURL overrides the API endpoint, for OpenAI-compatible servers.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}
