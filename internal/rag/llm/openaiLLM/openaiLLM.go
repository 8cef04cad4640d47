package openaiLLM

import (
	"context"
	"strings"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/customHttpClient"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type llmClient struct {
	api    openai.Client
	model  string
	logger *logger_i.Logger
}

// NewOpenAIClient also serves OpenAI compatible servers through baseURL.
func NewOpenAIClient(apiKey, baseURL, model string) llm.Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1), option.WithHTTPClient(customHttpClient.Client())}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = config.OpenAIChatModel
	}
	return &llmClient{
		api:    openai.NewClient(opts...),
		model:  model,
		logger: logger_i.NewLogger("llm_openai"),
	}
}

func (c *llmClient) Name() string { return config.LLMProviderOpenAI }

func (c *llmClient) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(float64(prompt.Temperature)),
	}
	if prompt.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(prompt.MaxTokens))
	}

	res, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.FromContext(ctx).Error("OpenAI generation failed", "error", err)
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", llm.ErrEmptyCompletion
	}
	text := strings.TrimSpace(res.Choices[0].Message.Content)
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}
	return text, nil
}
