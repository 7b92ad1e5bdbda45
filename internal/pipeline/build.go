package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/danieldevos90/brutally-honest-ai/internal/cache"
	"github.com/danieldevos90/brutally-honest-ai/internal/embed"
	"github.com/danieldevos90/brutally-honest-ai/internal/extract"
	"github.com/danieldevos90/brutally-honest-ai/internal/llm"
	"github.com/danieldevos90/brutally-honest-ai/internal/logger"
	"github.com/danieldevos90/brutally-honest-ai/internal/metrics"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/profile"
	"github.com/danieldevos90/brutally-honest-ai/internal/retrieve"
	"github.com/danieldevos90/brutally-honest-ai/internal/score"
	"github.com/danieldevos90/brutally-honest-ai/internal/validate"
	"github.com/danieldevos90/brutally-honest-ai/internal/vector"
	"github.com/danieldevos90/brutally-honest-ai/internal/worker"
)

// Components are the analysis services built from configuration
type Components struct {
	Analyzer   *Analyzer
	Ingester   *Ingester
	Embedder   embed.Embedder
	Index      vector.Index
	Profiles   profile.Store
	Classifier llm.Provider // nil when no provider is configured
}

// Build wires the analysis stack described by cfg. A classifier that fails
// to initialize is logged and left out; claims with evidence then come
// back UNVERIFIED.
func Build(ctx context.Context, cfg model.Config, log *logger.Logger, m *metrics.Metrics) (*Components, error) {
	if log == nil {
		log = logger.Nop()
	}

	var shared cache.Cache
	if cfg.Cache.Enabled {
		shared = cache.NewMemoryDiskCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	embedder, err := buildEmbedder(cfg, shared)
	if err != nil {
		return nil, err
	}

	index, err := buildIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	profiles, err := profile.Open(cfg.Profiles)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	retrieverOpts := []retrieve.Option{
		retrieve.WithTimeout(cfg.Retrieval.Timeout),
		retrieve.WithRetry(cfg.Retrieval.MaxRetries, cfg.Retrieval.RetryBackoff),
		retrieve.WithLogger(log.With("component", "retrieve")),
		retrieve.WithMetrics(m),
	}
	retriever := retrieve.New([]retrieve.Source{
		retrieve.NewDocumentSource(embedder, index, cfg.Retrieval.TopK, cfg.Retrieval.MinScore),
		retrieve.NewProfileSource(profiles),
	}, retrieverOpts...)

	classifier, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		log.Warn("classifier disabled", "provider", cfg.LLM.Provider, "error", err)
		classifier = nil
	}

	policy := validate.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Validation.MaxRetries
	if cfg.Validation.InitialBackoff > 0 {
		policy.Backoff = validate.ExponentialBackoff(cfg.Validation.InitialBackoff, cfg.Validation.MaxBackoff)
	}
	validator := validate.New(classifier,
		validate.WithRetryPolicy(policy),
		validate.WithLimiter(worker.NewLimiter(cfg.Validation.RequestsPerSecond, cfg.Validation.Burst)),
		validate.WithTimeout(cfg.Validation.Timeout),
		validate.WithConcurrency(cfg.Validation.Concurrency),
		validate.WithMaxTokens(cfg.LLM.MaxTokens),
		validate.WithLogger(log.With("component", "validate")),
		validate.WithMetrics(m),
	)

	analyzer := NewAnalyzer(
		extract.NewClaimExtractor(cfg.Extract.MinWords),
		retriever,
		validator,
		score.NewAggregator(cfg.Aggregate),
		log.With("component", "analyzer"),
		m,
	)

	fetcher := NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, cfg.HTTP.RespectRobots,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy).
		WithLimiter(worker.NewLimiter(cfg.HTTP.RequestsPerSecond, 1))

	return &Components{
		Analyzer:   analyzer,
		Ingester:   NewIngester(embedder, index, fetcher, cfg.Vector.ChunkSize, cfg.Vector.ChunkOverlap, log.With("component", "ingest")),
		Embedder:   embedder,
		Index:      index,
		Profiles:   profiles,
		Classifier: classifier,
	}, nil
}

func buildEmbedder(cfg model.Config, c cache.Cache) (embed.Embedder, error) {
	var embedder embed.Embedder
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "", "hash":
		return embed.NewHashEmbedder(cfg.Embedding.Dimensions), nil
	case "openai":
		apiKey := cfg.Embedding.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		e, err := embed.NewOpenAIEmbedder(apiKey, cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.Retrieval.Timeout)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		embedder = e
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, openai)", cfg.Embedding.Provider)
	}
	if c != nil {
		embedder = embed.NewCachedEmbedder(embedder, c, cfg.Cache.DiskTTL)
	}
	return embedder, nil
}

func buildIndex(ctx context.Context, cfg model.Config) (vector.Index, error) {
	switch strings.ToLower(cfg.Vector.Backend) {
	case "", "memory":
		return vector.NewMemoryIndex(cfg.Embedding.Dimensions), nil
	case "qdrant":
		q, err := vector.NewQdrantIndex(vector.QdrantConfig{
			URL:        cfg.Vector.URL,
			APIKey:     cfg.Vector.APIKey,
			Collection: cfg.Vector.Collection,
			Dims:       cfg.Embedding.Dimensions,
			Timeout:    cfg.Retrieval.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create qdrant index: %w", err)
		}
		if err := q.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("ensure qdrant collection: %w", err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, qdrant)", cfg.Vector.Backend)
	}
}
