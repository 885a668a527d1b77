package llms

// Tool is a tool that can be used by the model.
type Tool struct {
	// Type is the type of the tool, typically "function".
	Type string `json:"type"`
	// Function is the function definition, if the tool is a function.
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition is a definition of a function that can be called by the model.
type FunctionDefinition struct {
	// Name is the name of the function.
	Name string `json:"name"`
	// Description is a description of the function.
	Description string `json:"description"`
	// Parameters is a list of parameters for the function, as a JSON Schema
	// document.
	Parameters any `json:"parameters,omitempty"`
}

// CallOptions is a set of options for calling models.
type CallOptions struct {
	// Model is the model to use.
	Model string `json:"model"`
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens"`
	// Temperature is the temperature for sampling, between 0 and 1.
	Temperature float64 `json:"temperature"`
	// StopWords is a list of words to stop on.
	StopWords []string `json:"stop_words"`
	// Seed is a seed for deterministic sampling.
	Seed int `json:"seed"`
	// Tools is a list of tools the model may call.
	Tools []Tool `json:"tools,omitempty"`
	// ToolChoice is "none", "auto" (the default behavior), or a specific tool.
	ToolChoice any `json:"tool_choice"`
	// JSONMode asks the provider to return a JSON object.
	JSONMode bool `json:"json_mode"`
}

// CallOption is a function that configures a CallOptions.
type CallOption func(*CallOptions)

// WithModel specifies which model name to use.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

// WithMaxTokens specifies the max number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature specifies the model temperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
	}
}

// WithStopWords specifies a list of words to stop generation on.
func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

// WithSeed specifies a seed for deterministic sampling.
func WithSeed(seed int) CallOption {
	return func(o *CallOptions) {
		o.Seed = seed
	}
}

// WithTools specifies the tools the model may call.
func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

// WithToolChoice specifies the tool choice behavior.
func WithToolChoice(choice any) CallOption {
	return func(o *CallOptions) {
		o.ToolChoice = choice
	}
}

// WithJSONMode asks the provider to return a JSON object.
func WithJSONMode() CallOption {
	return func(o *CallOptions) {
		o.JSONMode = true
	}
}
