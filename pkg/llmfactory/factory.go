package llmfactory

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/pkg/llms/ollama"
	"github.com/therealnoof/mcp-server-lab/pkg/llms/openai"
)

var logger = xlog.NewPackageLogger("github.com/therealnoof/mcp-server-lab", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Factory is the interface for creating and managing LLM models.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its type, e.g. OLLAMA, OPENAI.
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by its name,
	// if the model is not found, it will return the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
}

// Load returns a factory configured from the given file.
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:    cfg,
		byType: make(map[string]llms.Model),
		byName: make(map[string]llms.Model),
	}

	if cfg.DefaultProvider != "" {
		for _, provider := range cfg.Providers {
			if provider.Name == cfg.DefaultProvider {
				f.defaultProvider = provider
				break
			}
		}
	}

	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

// CreateLLM constructs a model for the provider config.
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	provType := strings.ToUpper(cfg.APIType)
	switch provType {
	case "OLLAMA", "":
		return newOllama(cfg, preferredModels...), nil
	case "OPENAI", "OPEN_AI":
		return newOpenAI(cfg, preferredModels...)
	}
	return nil, errors.Errorf("unsupported provider type: %s", provType)
}

func newOllama(cfg *ProviderConfig, preferredModels ...string) llms.Model {
	var opts []ollama.Option
	if model := cfg.FindModel(preferredModels...); model != "" {
		opts = append(opts, ollama.WithModel(model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithBaseURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}

func newOpenAI(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	var opts []openai.Option
	if model := cfg.FindModel(preferredModels...); model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func (f *factory) DefaultModel() (llms.Model, error) {
	if f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}
	return f.modelForProvider(f.defaultProvider)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	providerType = strings.ToUpper(providerType)

	f.lock.Lock()
	model := f.byType[providerType]
	f.lock.Unlock()
	if model != nil {
		return model, nil
	}

	for _, provider := range f.cfg.Providers {
		if strings.ToUpper(provider.APIType) == providerType {
			return f.modelForProvider(provider)
		}
	}
	return nil, errors.Errorf("provider type not configured: %s", providerType)
}

func (f *factory) ModelByName(preferredModels ...string) (llms.Model, error) {
	f.lock.Lock()
	for _, name := range preferredModels {
		if model := f.byName[name]; model != nil {
			f.lock.Unlock()
			return model, nil
		}
	}
	f.lock.Unlock()

	for _, provider := range f.cfg.Providers {
		if model := provider.FindModel(preferredModels...); model != "" && model != provider.DefaultModel {
			return f.modelForProvider(provider, preferredModels...)
		}
	}

	logger.KV(xlog.DEBUG, "status", "preferred_models_not_found", "models", strings.Join(preferredModels, ","))
	return f.DefaultModel()
}

func (f *factory) modelForProvider(provider *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	model, err := NewLLM(provider, preferredModels...)
	if err != nil {
		return nil, err
	}

	f.lock.Lock()
	f.byType[strings.ToUpper(provider.APIType)] = model
	f.byName[model.GetName()] = model
	f.lock.Unlock()

	return model, nil
}
