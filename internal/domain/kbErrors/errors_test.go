package kbErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{&ParseError{Source: "a.pdf", Err: cause}, "ParseError"},
		{fmt.Errorf("wrapped: %w", &EmbeddingError{BatchIndices: []int{1}, Err: cause}), "EmbeddingError"},
		{&IndexError{KnowledgeBaseId: "kb", Op: "swap", Err: cause}, "IndexError"},
		{KnowledgeBaseNotFound("kb"), "NotFoundError"},
		{&RetrievalError{KnowledgeBaseId: "kb", Err: cause}, "RetrievalError"},
		{&GenerationError{Provider: "gemini", Err: cause}, "GenerationError"},
		{cause, "Error"},
		{nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestEmbeddingError_AsAndUnwrap(t *testing.T) {
	cause := errors.New("429")
	err := fmt.Errorf("batch: %w", &EmbeddingError{BatchIndices: []int{0, 1, 2, 5, 8, 9}, Err: cause})

	var embErr *EmbeddingError
	assert.True(t, errors.As(err, &embErr))
	assert.Equal(t, []int{0, 1, 2, 5, 8, 9}, embErr.BatchIndices)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Contains(t, err.Error(), "[0-2,5,8-9]")
}
