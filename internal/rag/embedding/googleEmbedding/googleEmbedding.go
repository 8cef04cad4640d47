package googleEmbedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"google.golang.org/genai"
)

// maxBatch is the Gemini batchEmbedContents request limit.
const maxBatch = 100

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	logger    *logger_i.Logger
}

func NewGoogleEmbedder(ctx context.Context, modelName string, apikey string, dimension int32) (embedding.Provider, error) {
	logger := logger_i.NewLogger("google_embedding")
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		return nil, fmt.Errorf("google embedding client: %w", err)
	}
	if modelName == "" {
		modelName = config.GoogleEmbeddingModel
	}
	if dimension <= 0 {
		dimension = config.EmbeddingOutputDimensionality
	}
	logger.Info("Google Embedding client created", "model", modelName, "dimension", dimension)
	return &client{genAi: c, model: modelName, dimension: dimension, logger: logger}, nil
}

func (c *client) Name() string  { return config.EmbeddingProviderGoogle }
func (c *client) MaxBatch() int { return maxBatch }

func (c *client) EmbedBatch(ctx context.Context, chunks []string) ([][]float32, error) {
	res, err := c.genAi.Models.EmbedContent(ctx, c.model, getContent(chunks),
		&genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: "RETRIEVAL_DOCUMENT"})
	if err != nil {
		c.logger.FromContext(ctx).Error("Error getting Embeddings from Google", "error", err)
		return nil, classify(err)
	}
	if res == nil {
		return nil, errors.New("empty embedding response")
	}

	results := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		if r == nil {
			results = append(results, nil)
			continue
		}
		results = append(results, r.Values)
	}
	return results, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// classify marks rate limits and server errors as retryable; grpc codes are handled by the gateway.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && embedding.IsTransientStatus(apiErr.Code) {
		return embedding.Transient(err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && embedding.IsTransientStatus(apiErrPtr.Code) {
		return embedding.Transient(err)
	}
	return err
}
