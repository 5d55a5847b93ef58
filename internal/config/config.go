package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".cleanroom.yml"

// EnvPrefix prefixes environment overrides. A double underscore descends
// into a section: CLEANROOM_CHAT__MODEL sets chat.model.
const EnvPrefix = "CLEANROOM_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CLEANROOM_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// Sections present in the file replace the defaults wholesale rather
	// than merging element by element.
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			ZeroFields:       true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderGoogle: true,
	ProviderOpenAI: true,
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.TimeoutSeconds < 0 {
		return fmt.Errorf("server.timeout_seconds must be non-negative")
	}
	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	if !validProviders[c.Chat.Provider] {
		return fmt.Errorf("invalid chat.provider %q: must be one of google, openai", c.Chat.Provider)
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("chat.model is required")
	}
	if c.Chat.RequestsPerMinute < 0 {
		return fmt.Errorf("chat.requests_per_minute must be non-negative")
	}
	if c.Chat.MaxTokens < 0 {
		return fmt.Errorf("chat.max_tokens must be non-negative")
	}

	if c.Embedding.Provider != "" && !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Retries < 0 {
		return fmt.Errorf("embedding.retries must be non-negative")
	}

	if c.Diagrams.Width < 0 || c.Diagrams.Height < 0 {
		return fmt.Errorf("diagrams.width and diagrams.height must be non-negative")
	}

	if c.Feeds.TimeoutSeconds <= 0 {
		return fmt.Errorf("feeds.timeout_seconds must be positive")
	}
	for cat, srcs := range c.Feeds.Categories {
		for _, s := range srcs {
			if s.URL == "" {
				return fmt.Errorf("feeds.categories.%s: source %q has no url", cat, s.Name)
			}
		}
	}

	for _, s := range c.Knowledge.Sources {
		if s.URL == "" {
			return fmt.Errorf("knowledge source %q has no url", s.Title)
		}
		if s.Type != "" && s.Type != "html" && s.Type != "pdf" {
			return fmt.Errorf("knowledge source %q: invalid type %q", s.Title, s.Type)
		}
	}

	for _, v := range c.Visuals {
		if v.Name == "" {
			return fmt.Errorf("visual name is required")
		}
	}

	return nil
}

// APIKeyEnvVars returns the environment variables checked, in order, for
// the API key of the given provider.
func APIKeyEnvVars(provider ProviderType) []string {
	switch provider {
	case ProviderGoogle:
		return []string{"GOOGLE_GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	default:
		return nil
	}
}

// APIKey returns the first non-empty API key for provider from the environment.
func APIKey(provider ProviderType) string {
	for _, v := range APIKeyEnvVars(provider) {
		if key := os.Getenv(v); key != "" {
			return key
		}
	}
	return ""
}
