package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
