// Package llms defines the message model and the client contract shared by
// the reasoning-engine providers.
package llms

import (
	"context"
)

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderOllama is a self-hosted Ollama endpoint.
	ProviderOllama ProviderType = "OLLAMA"
	// ProviderOpenAI is OpenAI or any OpenAI-compatible endpoint.
	ProviderOpenAI ProviderType = "OPENAI"
)

// Model is the interface chat models implement.
type Model interface {
	// GetName returns the model identifier used for requests.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GenerateContent asks the model to generate content from a sequence of
	// messages. It blocks until the provider responds or the context is
	// cancelled.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// Basic text or chat generation
	CapabilityText Capability = 1 << iota

	// Function/tool calling
	CapabilityFunctionCalling
	CapabilityMultiToolCalling

	// Structured response formats
	CapabilityJSONResponse

	// Open weight models / self-hosted
	CapabilitySelfHosted

	// System prompt support
	CapabilitySystemPrompt
)

var providerCapabilities = map[ProviderType]Capability{
	ProviderOllama: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilityJSONResponse |
		CapabilitySelfHosted |
		CapabilitySystemPrompt,

	ProviderOpenAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilityJSONResponse |
		CapabilitySystemPrompt,
}

func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

func (p ProviderType) Supports(cap Capability) bool {
	return ProviderCapabilities(p)&cap != 0
}
