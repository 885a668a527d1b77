// Package llmfactory creates reasoning models from configuration, so the
// provider and model can change without code changes.
package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
)

// Config lists the configured model providers.
type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
}

// ProviderConfig describes one model provider.
type ProviderConfig struct {
	Name string `json:"name" yaml:"name"`
	// APIType specifies the type of API to use: OLLAMA|OPENAI
	APIType string `json:"api_type" yaml:"api_type"`
	// BaseURL is the server URL; for OLLAMA defaults to the local server.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Token is the API token, when the provider requires one.
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
}

// FindModel returns the first preferred model the provider advertises, or
// the provider's default.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig from file. Environment variables in the file are expanded.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
