package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"google.golang.org/genai"
)

// One retry on rate limits and server errors, matching the openai client.
const (
	generateAttempts   = 2
	generateRetryDelay = 500 * time.Millisecond
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type llmClient struct {
	generate   generateFunc
	modelName  string
	retryDelay time.Duration
	logger     *logger_i.Logger
}

func NewGeminiClient(ctx context.Context, modelName string, apikey string) (llm.Provider, error) {
	logger := logger_i.NewLogger("llm_gemini")
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Gemini client", "error", err)
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if modelName == "" {
		modelName = config.GeminiModelName
	}
	logger.Info("Gemini client created", "model", modelName)
	return &llmClient{
		generate:   c.Models.GenerateContent,
		modelName:  modelName,
		retryDelay: generateRetryDelay,
		logger:     logger,
	}, nil
}

func (c *llmClient) Name() string { return config.LLMProviderGemini }

func (c *llmClient) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	log := c.logger.FromContext(ctx)

	contentConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(prompt.Temperature),
	}
	if prompt.System != "" {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		}
	}
	if prompt.MaxTokens > 0 {
		contentConfig.MaxOutputTokens = int32(prompt.MaxTokens)
	}

	var result *genai.GenerateContentResponse
	var err error
	for attempt := 1; ; attempt++ {
		result, err = c.generate(ctx, c.modelName, genai.Text(prompt.User), contentConfig)
		if err == nil {
			break
		}
		if attempt >= generateAttempts || !retryable(ctx, err) {
			log.Error("Gemini generation failed", "error", err, "attempt", attempt)
			return "", err
		}
		log.Warn("Gemini generation failed, retrying", "error", err, "attempt", attempt)
		if err := sleepCtx(ctx, c.retryDelay); err != nil {
			return "", err
		}
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}
	return text, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return embedding.IsTransientStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return embedding.IsTransientStatus(apiErrPtr.Code)
	}
	return embedding.IsTransient(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
