package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to cleanroom! Let's configure the training backend.")
	fmt.Println()

	cfg := DefaultConfig()

	providerPrompt := promptui.Select{
		Label: "Select chat provider",
		Items: []string{"google", "openai"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Chat.Provider = ProviderType(providerStr)
	cfg.Chat.Model = GetPreset(cfg.Chat.Provider).Model

	modelPrompt := promptui.Prompt{
		Label:   "Chat model",
		Default: cfg.Chat.Model,
	}
	if cfg.Chat.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}

	embedPrompt := promptui.Select{
		Label: "Select embedding provider for vector search",
		Items: []string{"openai", "google"},
	}
	_, embedStr, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}
	cfg.Embedding.Provider = ProviderType(embedStr)
	cfg.Embedding.Model = GetPreset(cfg.Embedding.Provider).EmbeddingModel

	addrPrompt := promptui.Prompt{
		Label:   "Listen address",
		Default: cfg.Server.Addr,
	}
	if cfg.Server.Addr, err = addrPrompt.Run(); err != nil {
		return nil, fmt.Errorf("listen address: %w", err)
	}

	rpmPrompt := promptui.Prompt{
		Label:    "Chat requests per minute",
		Default:  strconv.Itoa(cfg.Chat.RequestsPerMinute),
		Validate: validateNonNegativeInt,
	}
	rpm, err := rpmPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("requests per minute: %w", err)
	}
	cfg.Chat.RequestsPerMinute, _ = strconv.Atoi(strings.TrimSpace(rpm))

	dirPrompt := promptui.Prompt{
		Label:   "Diagram config directory",
		Default: cfg.Diagrams.Dir,
	}
	if cfg.Diagrams.Dir, err = dirPrompt.Run(); err != nil {
		return nil, fmt.Errorf("diagram directory: %w", err)
	}

	for _, p := range []ProviderType{cfg.Chat.Provider, cfg.Embedding.Provider} {
		if APIKey(p) == "" {
			fmt.Printf("\nNote: set %s in your environment or .env before running cleanroom serve.\n",
				strings.Join(APIKeyEnvVars(p), " or "))
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative")
	}
	return nil
}
