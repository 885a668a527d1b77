package agent

import (
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/store"
)

// DefaultMaxIterations bounds the decide/execute loop. A confused model that
// keeps requesting tools is cut off after this many reasoning rounds.
const DefaultMaxIterations = 10

// Option is a function that can be used to modify the behavior of the Analyst Config.
type Option func(*Config)

type Config struct {
	// MaxIterations is the maximum number of reasoning rounds per
	// investigation. DefaultMaxIterations is used when zero or negative.
	MaxIterations int

	// SystemPrompt overrides the built-in investigation methodology prompt.
	SystemPrompt string

	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// Seed is a seed for deterministic sampling in an LLM call.
	Seed    int
	seedSet bool

	// CallbackHandler observes the run.
	CallbackHandler Callback

	// Store keeps the conversation across runs with the same chat ID.
	Store store.MessageStore
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithMaxIterations caps the number of reasoning rounds per investigation.
func WithMaxIterations(maxIterations int) Option {
	return func(o *Config) {
		o.MaxIterations = maxIterations
	}
}

// WithSystemPrompt overrides the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Config) {
		o.SystemPrompt = prompt
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithSeed will add an option to use deterministic sampling for LLM.Call.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithStore attaches a message store for conversation history.
func WithStore(messageStore store.MessageStore) Option {
	return func(o *Config) {
		o.Store = messageStore
	}
}

// GetCallOptions converts the configured LLM settings to call options.
func (c *Config) GetCallOptions(extra ...llms.CallOption) []llms.CallOption {
	var callOptions []llms.CallOption
	if c.modelSet {
		callOptions = append(callOptions, llms.WithModel(c.Model))
	}
	if c.maxTokensSet {
		callOptions = append(callOptions, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.temperatureSet {
		callOptions = append(callOptions, llms.WithTemperature(c.Temperature))
	}
	if c.seedSet {
		callOptions = append(callOptions, llms.WithSeed(c.Seed))
	}
	return append(callOptions, extra...)
}
