package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func reply(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
	}}}
}

func clientWith(calls *int, errs ...error) *llmClient {
	return &llmClient{
		generate: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			*calls++
			if *calls <= len(errs) {
				return nil, errs[*calls-1]
			}
			return reply(" EMD is 2% [S1] "), nil
		},
		modelName:  "gemini-test",
		retryDelay: time.Millisecond,
		logger:     logger_i.NewLogger("llm_gemini_test"),
	}
}

func TestGenerate_Retry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantText  string
		wantErr   bool
		wantCalls int
	}{
		{"first call succeeds", nil, "EMD is 2% [S1]", false, 1},
		{"rate limit retried once", []error{genai.APIError{Code: 429, Message: "quota"}}, "EMD is 2% [S1]", false, 2},
		{"server error retried once", []error{&genai.APIError{Code: 503, Message: "overloaded"}}, "EMD is 2% [S1]", false, 2},
		{"gives up after two attempts", []error{genai.APIError{Code: 500}, genai.APIError{Code: 500}}, "", true, 2},
		{"bad request not retried", []error{genai.APIError{Code: 400, Message: "invalid"}}, "", true, 1},
		{"unknown error not retried", []error{errors.New("boom")}, "", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			text, err := clientWith(&calls, tt.errs...).Generate(context.Background(), llm.Prompt{System: "sys", User: "q", MaxTokens: 64})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestGenerate_CancelledContextStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := clientWith(&calls, genai.APIError{Code: 503}).Generate(ctx, llm.Prompt{User: "q"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	c := &llmClient{
		generate: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return reply("   "), nil
		},
		retryDelay: time.Millisecond,
		logger:     logger_i.NewLogger("llm_gemini_test"),
	}
	_, err := c.Generate(context.Background(), llm.Prompt{User: "q"})
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}
