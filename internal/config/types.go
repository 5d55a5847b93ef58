package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderGoogle ProviderType = "google"
	ProviderOpenAI ProviderType = "openai"
)

// Config is the top-level cleanroom configuration, corresponding to .cleanroom.yml.
type Config struct {
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	LogLevel  string          `yaml:"log_level" koanf:"log_level"`
	DataDir   string          `yaml:"data_dir" koanf:"data_dir"`
	Diagrams  DiagramsConfig  `yaml:"diagrams" koanf:"diagrams"`
	Chat      ChatConfig      `yaml:"chat" koanf:"chat"`
	Embedding EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	Feeds     FeedsConfig     `yaml:"feeds" koanf:"feeds"`
	Knowledge KnowledgeConfig `yaml:"knowledge" koanf:"knowledge"`
	Visuals   []VisualConfig  `yaml:"visuals" koanf:"visuals"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr" koanf:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	TimeoutSeconds int      `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	AssetsDir      string   `yaml:"assets_dir" koanf:"assets_dir"`
}

// DiagramsConfig locates diagram configs and sets the export canvas.
type DiagramsConfig struct {
	Dir    string `yaml:"dir" koanf:"dir"`
	Width  int    `yaml:"width" koanf:"width"`
	Height int    `yaml:"height" koanf:"height"`
}

// ChatConfig selects the chat model. API keys come from the environment.
type ChatConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int          `yaml:"max_tokens" koanf:"max_tokens"`
}

// EmbeddingConfig selects the embedding model used by vector search.
// AzureEndpoint, when set, routes OpenAI embeddings through an Azure
// OpenAI deployment named after Model.
type EmbeddingConfig struct {
	Provider      ProviderType `yaml:"provider" koanf:"provider"`
	Model         string       `yaml:"model" koanf:"model"`
	Retries       int          `yaml:"retries" koanf:"retries"`
	AzureEndpoint string       `yaml:"azure_endpoint,omitempty" koanf:"azure_endpoint"`
}

// FeedSource is one RSS or Atom feed.
type FeedSource struct {
	Name string `yaml:"name" koanf:"name"`
	URL  string `yaml:"url" koanf:"url"`
}

// FeedsConfig maps category names to their feed sources.
type FeedsConfig struct {
	TimeoutSeconds int                     `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	CacheHours     int                     `yaml:"cache_hours" koanf:"cache_hours"`
	Categories     map[string][]FeedSource `yaml:"categories" koanf:"categories"`
}

// KnowledgeSource is a page (or PDF) consulted by the keyword fallback.
type KnowledgeSource struct {
	Title  string `yaml:"title" koanf:"title"`
	URL    string `yaml:"url" koanf:"url"`
	Type   string `yaml:"type" koanf:"type"`
	Source string `yaml:"source" koanf:"source"`
}

// KnowledgeConfig configures retrieval.
type KnowledgeConfig struct {
	Tenant  string            `yaml:"tenant" koanf:"tenant"`
	Sources []KnowledgeSource `yaml:"sources" koanf:"sources"`
}

// VisualConfig lists where a named visual may be found, in order of preference.
type VisualConfig struct {
	Name     string `yaml:"name" koanf:"name"`
	Local    string `yaml:"local" koanf:"local"`
	Remote   string `yaml:"remote" koanf:"remote"`
	Fallback string `yaml:"fallback" koanf:"fallback"`
}
