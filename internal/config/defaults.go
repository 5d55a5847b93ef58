package config

import (
	"maps"
	"slices"
)

// ModelPreset describes the default models for a provider.
type ModelPreset struct {
	Model          string
	EmbeddingModel string
}

var modelPresets = map[ProviderType]ModelPreset{
	ProviderGoogle: {Model: "gemini-2.0-flash", EmbeddingModel: "text-embedding-004"},
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
}

// DefaultCategories are the regulatory news feeds shown in the app.
var DefaultCategories = map[string][]FeedSource{
	"annex1": {
		{Name: "EMA", URL: "https://www.ema.europa.eu/en/rss.xml"},
		{Name: "MHRA", URL: "https://www.gov.uk/government/organisations/medicines-and-healthcare-products-regulatory-agency.atom"},
	},
	"fda": {
		{Name: "FDA Drugs", URL: "https://www.fda.gov/about-fda/contact-fda/stay-informed/rss-feeds/drugs/rss.xml"},
		{Name: "FDA Safety", URL: "https://www.fda.gov/about-fda/contact-fda/stay-informed/rss-feeds/cder-drug-safety-communications/rss.xml"},
	},
	"gxp": {
		{Name: "EMA News", URL: "https://www.ema.europa.eu/en/news-events/rss.xml"},
		{Name: "ICH Updates", URL: "https://www.ich.org/page/news-events"},
	},
}

// DefaultKnowledgeSources are consulted by the keyword fallback.
var DefaultKnowledgeSources = []KnowledgeSource{
	{Title: "EU GMP Annex 1 (PDF, EN), Official", URL: "https://health.ec.europa.eu/system/files/2023-08/202206_annex1_en_0.pdf", Type: "pdf", Source: "Annex 1"},
	{Title: "EMA, GMP and GDP inspections", URL: "https://www.ema.europa.eu/en/human-regulatory/research-development/compliance/good-manufacturing-practice/gmp-gdp-inspections", Type: "html", Source: "EMA"},
	{Title: "MHRA, GMP and GDP guidance", URL: "https://www.gov.uk/guidance/good-manufacturing-practice-and-good-distribution-practice", Type: "html", Source: "MHRA"},
	{Title: "PIC/S, Publications (incl. guidance)", URL: "https://www.pics.org/publications", Type: "html", Source: "PIC/S"},
	{Title: "ISO 14644-1 Cleanrooms and associated controlled environments, Part 1", URL: "https://www.iso.org/standard/53394.html", Type: "html", Source: "ISO"},
}

// DefaultVisuals are the avatar and hero visuals resolved by the capability chain.
var DefaultVisuals = []VisualConfig{
	{Name: "avatar", Local: "models/professor.glb", Remote: "", Fallback: "primitive"},
	{Name: "hero", Local: "lottie/hero.json", Remote: "", Fallback: "static"},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":3001",
			AllowedOrigins: []string{"*"},
			TimeoutSeconds: 60,
			AssetsDir:      "public",
		},
		LogLevel: "info",
		DataDir:  ".cleanroom",
		Diagrams: DiagramsConfig{Dir: "diagrams", Width: 900, Height: 560},
		Chat: ChatConfig{
			Provider:          ProviderGoogle,
			Model:             modelPresets[ProviderGoogle].Model,
			RequestsPerMinute: 15,
			Temperature:       0.7,
			MaxTokens:         2048,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Model:    modelPresets[ProviderOpenAI].EmbeddingModel,
			Retries:  3,
		},
		Feeds: FeedsConfig{
			TimeoutSeconds: 10,
			CacheHours:     6,
			Categories:     maps.Clone(DefaultCategories),
		},
		Knowledge: KnowledgeConfig{
			Tenant:  "public",
			Sources: slices.Clone(DefaultKnowledgeSources),
		},
		Visuals: slices.Clone(DefaultVisuals),
	}
}

// GetPreset returns the default models for provider, falling back to Google.
func GetPreset(provider ProviderType) ModelPreset {
	if p, ok := modelPresets[provider]; ok {
		return p
	}
	return modelPresets[ProviderGoogle]
}
