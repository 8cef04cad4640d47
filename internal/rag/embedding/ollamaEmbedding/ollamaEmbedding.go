package ollamaEmbedding

import (
	"context"
	"fmt"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/customHttpClient"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

type client struct {
	embedder embeddings.Embedder
	logger   *logger_i.Logger
}

// NewOllamaEmbedder talks to a local ollama server through langchaingo.
func NewOllamaEmbedder(serverURL, model string) (embedding.Provider, error) {
	if serverURL == "" {
		serverURL = config.OllamaURL
	}
	if model == "" {
		model = config.OllamaEmbeddingModel
	}
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(customHttpClient.Client()),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return &client{embedder: embedder, logger: logger_i.NewLogger("ollama_embedding")}, nil
}

func (c *client) Name() string  { return config.EmbeddingProviderOllama }
func (c *client) MaxBatch() int { return 0 }

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		// a local server failing is usually a restart or model load, worth another attempt
		c.logger.FromContext(ctx).Warn("ollama embedding failed", "error", err)
		return nil, embedding.Transient(err)
	}
	return vecs, nil
}
