package providers

import (
	"context"
	"fmt"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/TenderRAG/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/TenderRAG/internal/rag/embedding/ollamaEmbedding"
	"github.com/akolanti/TenderRAG/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/internal/rag/llm/gemini"
	"github.com/akolanti/TenderRAG/internal/rag/llm/openaiLLM"
)

// NewEmbeddingProvider picks the embedding backend named in settings.
func NewEmbeddingProvider(ctx context.Context, s config.EmbeddingSettings) (embedding.Provider, error) {
	switch s.Provider {
	case config.EmbeddingProviderGoogle:
		return googleEmbedding.NewGoogleEmbedder(ctx, s.Model, s.GoogleAPIKey, s.Dimension)
	case config.EmbeddingProviderOpenAI:
		return openaiEmbedding.NewOpenAIEmbedder(s.OpenAIAPIKey, s.OpenAIBaseURL, s.Model), nil
	case config.EmbeddingProviderOllama:
		return ollamaEmbedding.NewOllamaEmbedder(s.OllamaURL, s.Model)
	case config.EmbeddingProviderHash, "":
		return hashEmbedding.New(config.HashEmbeddingDimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}

// NewGateway wraps the configured provider with batching, retry and throttling.
func NewGateway(ctx context.Context, s config.EmbeddingSettings) (*embedding.Gateway, error) {
	p, err := NewEmbeddingProvider(ctx, s)
	if err != nil {
		return nil, err
	}
	return embedding.NewGateway(p, embedding.GatewayOptionsFrom(s)), nil
}

// NewLLMProvider returns nil for the "none" provider; answers then degrade to context only.
func NewLLMProvider(ctx context.Context, s config.LLMSettings) (llm.Provider, error) {
	switch s.Provider {
	case config.LLMProviderGemini:
		return gemini.NewGeminiClient(ctx, s.Model, s.GoogleAPIKey)
	case config.LLMProviderOpenAI:
		return openaiLLM.NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIBaseURL, s.Model), nil
	case config.LLMProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}
}
