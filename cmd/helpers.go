package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/annexlab/cleanroom/internal/chat"
	"github.com/annexlab/cleanroom/internal/config"
	"github.com/annexlab/cleanroom/internal/db"
	"github.com/annexlab/cleanroom/internal/diagram"
	"github.com/annexlab/cleanroom/internal/embeddings"
	"github.com/annexlab/cleanroom/internal/knowledge"
	"github.com/annexlab/cleanroom/internal/llm"
	"github.com/annexlab/cleanroom/internal/metrics"
	"github.com/annexlab/cleanroom/internal/vectordb"
)

var (
	success = color.New(color.FgGreen, color.Bold).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

// errNoEmbeddingKey means vector search runs disabled.
var errNoEmbeddingKey = errors.New("no embedding API key")

// createEmbedderFromConfig builds the embedder for vector search, wrapped
// with rate-limit retries. m may be nil.
func createEmbedderFromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (embeddings.Embedder, error) {
	provider := cfg.Embedding.Provider
	if provider == "" {
		provider = cfg.Chat.Provider
	}
	model := cfg.Embedding.Model
	if model == "" {
		model = config.GetPreset(provider).EmbeddingModel
	}
	apiKey := config.APIKey(provider)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set one of %v", errNoEmbeddingKey, config.APIKeyEnvVars(provider))
	}

	var inner embeddings.Embedder
	switch provider {
	case config.ProviderOpenAI:
		if cfg.Embedding.AzureEndpoint != "" {
			inner = embeddings.NewAzureEmbedder(apiKey, cfg.Embedding.AzureEndpoint, embeddings.OpenAIModel(model))
		} else {
			inner = embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model))
		}
	case config.ProviderGoogle:
		e, err := embeddings.NewGenAIEmbedder(ctx, apiKey, model, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}

	return embeddings.NewRetrying(inner,
		embeddings.WithRetries(cfg.Embedding.Retries),
		embeddings.WithOnRetry(func(attempt int, wait time.Duration) {
			m.IncEmbeddingRetry()
			log.Warn().Int("attempt", attempt).Dur("wait", wait).Msg("embedding rate limited, retrying")
		}),
	), nil
}

// openKnowledgeIndex opens the persisted vector index. Without an
// embedding key the index is returned unavailable rather than failing.
func openKnowledgeIndex(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) *knowledge.Index {
	dir := filepath.Join(cfg.DataDir, "vectordb")
	embedder, err := createEmbedderFromConfig(ctx, cfg, m, log)
	if err != nil {
		log.Warn().Err(err).Msg("vector search disabled")
		return knowledge.NewIndex(nil, cfg.Knowledge.Tenant, dir, log)
	}
	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		log.Warn().Err(err).Msg("vector search disabled")
		return knowledge.NewIndex(nil, cfg.Knowledge.Tenant, dir, log)
	}

	idx := knowledge.NewIndex(store, cfg.Knowledge.Tenant, dir, log)
	if err := idx.Load(ctx); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("could not load vector store, starting empty")
	}
	return idx
}

// createChatSlot builds the chat provider slot. A missing key leaves the
// slot empty so the key can be supplied later through /api/chat/config.
func createChatSlot(cfg *config.Config, log zerolog.Logger) *llm.Slot {
	build := func(apiKey string) (llm.Provider, error) {
		p, err := llm.NewProvider(cfg.Chat.Provider, apiKey, cfg.Chat.Model)
		if err != nil {
			return nil, err
		}
		return llm.NewThrottled(p, cfg.Chat.RequestsPerMinute), nil
	}

	p, err := llm.FromConfig(cfg)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			log.Warn().Strs("env", config.APIKeyEnvVars(cfg.Chat.Provider)).Msg("chat disabled until an API key is configured")
		} else {
			log.Error().Err(err).Msg("creating chat provider")
		}
		return llm.NewSlot(nil, build)
	}
	return llm.NewSlot(p, build)
}

func chatOptions(cfg *config.Config) chat.Options {
	opts := chat.DefaultOptions()
	if cfg.Chat.Temperature > 0 {
		opts.Temperature = cfg.Chat.Temperature
	}
	if cfg.Chat.MaxTokens > 0 {
		opts.MaxTokens = cfg.Chat.MaxTokens
	}
	return opts
}

// openDatabase opens the SQLite database under the data directory.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(filepath.Join(cfg.DataDir, "cleanroom.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// loadCatalog loads every diagram config under the configured directory.
func loadCatalog(cfg *config.Config, log zerolog.Logger) (*diagram.Catalog, error) {
	cat := diagram.NewCatalog(log)
	if _, err := cat.LoadDir(cfg.Diagrams.Dir); err != nil {
		return nil, fmt.Errorf("loading diagrams from %s: %w", cfg.Diagrams.Dir, err)
	}
	return cat, nil
}
