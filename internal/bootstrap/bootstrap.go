// Package bootstrap wires the RAG components from settings. The API server, the build-index
// CLI and the MCP server all start from here so they agree on one index layout.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/akolanti/TenderRAG/internal/api"
	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/data/docstore"
	"github.com/akolanti/TenderRAG/internal/data/redisStore"
	"github.com/akolanti/TenderRAG/internal/rag"
	"github.com/akolanti/TenderRAG/internal/rag/chunker"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/internal/rag/ingest"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/internal/rag/parser"
	"github.com/akolanti/TenderRAG/internal/rag/providers"
	"github.com/akolanti/TenderRAG/internal/rag/retriever"
	"github.com/akolanti/TenderRAG/internal/rag/summary"
	"github.com/akolanti/TenderRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

type Components struct {
	Settings  config.Settings
	Gateway   *embedding.Gateway
	LLM       llm.Provider
	Index     index.Store
	Documents docstore.Store
	Pipeline  *ingest.Pipeline
	Retriever *retriever.Retriever
	Service   rag.Service
}

// Health is what the liveness endpoint reports.
func (c *Components) Health() api.HealthResponse {
	llmName := config.LLMProviderNone
	if c.LLM != nil {
		llmName = c.LLM.Name()
	}
	return api.HealthResponse{
		Status:            "ok",
		LLMProvider:       llmName,
		EmbeddingProvider: c.Gateway.ProviderName(),
		IndexBackend:      c.Settings.Index.Backend,
	}
}

// NewIndexStore picks the local chromem store or qdrant.
func NewIndexStore(ctx context.Context, s config.IndexSettings) (index.Store, error) {
	switch s.Backend {
	case config.IndexBackendQdrant:
		return qdrantDB.NewQdrantStore(ctx, s)
	case config.IndexBackendLocal, "":
		root := s.Root
		if root == "" {
			root = config.DefaultIndexRoot
		}
		return index.NewFileStore(root), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", s.Backend)
	}
}

// NewLocker adds the redis lock when redis is enabled and reachable.
func NewLocker(ctx context.Context, s config.RedisSettings) index.Locker {
	if !s.Enabled {
		return index.NewKeyedMutex()
	}
	redisStore.Configure(s)
	return index.NewBuildLocker(redisStore.GetRedisStore(ctx, config.RedisLockStore))
}

// New builds every component. ctx bounds the lifetime of the backing clients.
func New(ctx context.Context, s config.Settings) (*Components, error) {
	log := logger_i.NewLogger("bootstrap")

	gateway, err := providers.NewGateway(ctx, s.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	generator, err := providers.NewLLMProvider(ctx, s.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	store, err := NewIndexStore(ctx, s.Index)
	if err != nil {
		return nil, fmt.Errorf("index store: %w", err)
	}
	documents, err := docstore.New(ctx, s.Storage)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}

	summaries := summary.New(generator)
	pipeline := ingest.New(parser.NewDefault(), gateway, store, NewLocker(ctx, s.Redis), ingest.Options{
		Workers:  config.IngestWorkers,
		Chunking: chunker.Options{MaxTokens: s.Chunking.MaxTokens, OverlapTokens: s.Chunking.OverlapTokens},
	}).WithSummaries(summaries)
	search := retriever.New(store, retriever.OptionsFrom(s.Retrieval))

	service := rag.NewService(rag.Config{
		Embedder:  gateway,
		Retriever: search,
		LLM:       generator,
		Index:     store,
		Builder:   pipeline,
		Documents: documents,
		Summaries: summaries,
		Options:   rag.OptionsFrom(s.LLM),
	})

	log.Info("components ready",
		"embedding", gateway.ProviderName(), "llm", s.LLM.Provider,
		"index", s.Index.Backend, "storage", s.Storage.Backend)
	return &Components{
		Settings:  s,
		Gateway:   gateway,
		LLM:       generator,
		Index:     store,
		Documents: documents,
		Pipeline:  pipeline,
		Retriever: search,
		Service:   service,
	}, nil
}
