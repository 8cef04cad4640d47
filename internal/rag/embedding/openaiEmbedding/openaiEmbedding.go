package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/customHttpClient"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// maxBatch stays well under the 2048 inputs the embeddings endpoint accepts.
const maxBatch = 256

type client struct {
	api    openai.Client
	model  string
	logger *logger_i.Logger
}

// NewOpenAIEmbedder works against api.openai.com or any OpenAI compatible base url.
// Retries are disabled in the sdk because the gateway owns them.
func NewOpenAIEmbedder(apiKey, baseURL, model string) embedding.Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0), option.WithHTTPClient(customHttpClient.Client())}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = config.OpenAIEmbeddingModel
	}
	return &client{
		api:    openai.NewClient(opts...),
		model:  model,
		logger: logger_i.NewLogger("openai_embedding"),
	}
}

func (c *client) Name() string  { return config.EmbeddingProviderOpenAI }
func (c *client) MaxBatch() int { return maxBatch }

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		c.logger.FromContext(ctx).Error("Error getting Embeddings from OpenAI", "error", err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && embedding.IsTransientStatus(apiErr.StatusCode) {
			return nil, embedding.Transient(err)
		}
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, d := range res.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
