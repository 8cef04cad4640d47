package index

import (
	"context"
	"testing"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateChunks(t *testing.T) {
	foreign := chunk("x", 1, 0)
	foreign.KnowledgeBaseId = "kb_other"

	tests := []struct {
		name    string
		chunks  []commonModels.Chunk
		wantDim int
		wantErr error
	}{
		{"empty", nil, 0, nil},
		{"valid", []commonModels.Chunk{chunk("a", 1, 2, 3), chunk("b", 3, 2, 1)}, 3, nil},
		{"missing embedding", []commonModels.Chunk{chunk("a")}, 0, errMissingEmbedding},
		{"dimension", []commonModels.Chunk{chunk("a", 1), chunk("b", 1, 2)}, 0, errDimension},
		{"duplicate", []commonModels.Chunk{chunk("a", 1), chunk("a", 2)}, 0, errDuplicateChunk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim, err := ValidateChunks("kb", tt.chunks)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, dim)
		})
	}

	_, err := ValidateChunks("kb", []commonModels.Chunk{foreign})
	assert.ErrorContains(t, err, "kb_other")
}

func TestSafeId(t *testing.T) {
	tests := []struct{ in, want string }{
		{"kb_global", "kb_global"},
		{"  kb 1 ", "kb_1"},
		{"../etc", "__etc"},
		{"a/b\\c:d", "a_b_c_d"},
		{"", "_"},
		{".", "_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeId(tt.in), tt.in)
	}
}

func TestMemoryHandle(t *testing.T) {
	ctx := context.Background()
	h, err := NewMemoryHandle("kb", "b1", []commonModels.Chunk{chunk("z", 0, 2), chunk("a", 3, 0)})
	require.NoError(t, err)

	assert.Equal(t, 2, h.Dimension())
	assert.Equal(t, "a", h.Chunks()[0].ChunkId)

	scored, err := h.Similarities(ctx, []float32{5, 0})
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].Chunk.ChunkId)
	assert.InDelta(t, 1.0, scored[0].Score, 1e-6)
	assert.InDelta(t, 0.0, scored[1].Score, 1e-6)

	_, err = h.Similarities(ctx, []float32{1, 0, 0})
	assert.Error(t, err)

	_, err = NewMemoryHandle("kb", "b2", []commonModels.Chunk{chunk("a", 1), chunk("a", 1)})
	assert.ErrorIs(t, err, errDuplicateChunk)
}
