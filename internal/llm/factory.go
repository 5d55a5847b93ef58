package llm

import (
	"fmt"

	"github.com/annexlab/cleanroom/internal/config"
)

// NewProvider creates a provider of the given type using apiKey. An empty
// model selects the provider's preset.
func NewProvider(providerType config.ProviderType, apiKey, model string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key for %s", ErrNotConfigured, providerType)
	}
	if model == "" {
		model = config.GetPreset(providerType).Model
	}
	switch providerType {
	case config.ProviderGoogle:
		return NewGoogleProvider(apiKey, model), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// FromConfig builds the chat provider described by cfg, reading the key
// from the environment, and applies its per-minute request limit.
func FromConfig(cfg *config.Config) (Provider, error) {
	p, err := NewProvider(cfg.Chat.Provider, config.APIKey(cfg.Chat.Provider), cfg.Chat.Model)
	if err != nil {
		return nil, err
	}
	return NewThrottled(p, cfg.Chat.RequestsPerMinute), nil
}
