package retriever

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	OnLoad func(ctx context.Context, kbId string) (index.Handle, error)
}

func (m *MockStore) Build(context.Context, string, []commonModels.Chunk, index.BuildInfo) (index.Handle, error) {
	return nil, errors.New("not used")
}

func (m *MockStore) Load(ctx context.Context, kbId string) (index.Handle, error) {
	return m.OnLoad(ctx, kbId)
}

func (m *MockStore) PutArtifact(context.Context, string, string, []byte) error { return nil }

func (m *MockStore) GetArtifact(context.Context, string, string) ([]byte, error) {
	return nil, &kbErrors.NotFoundError{Kind: "artifact", Id: "x"}
}

func chunk(id string, vec ...float32) commonModels.Chunk {
	return commonModels.Chunk{ChunkId: id, Text: "text " + id, SectionHint: "f.pdf | paragraph 1", Embedding: vec}
}

func storeWith(t *testing.T, chunks ...commonModels.Chunk) *MockStore {
	h, err := index.NewMemoryHandle("kb", "1", chunks)
	require.NoError(t, err)
	return &MockStore{OnLoad: func(context.Context, string) (index.Handle, error) { return h, nil }}
}

func ids(r commonModels.QueryResult) []string {
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Chunk.ChunkId
	}
	return out
}

func TestSearch_OrdersByScoreThenChunkId(t *testing.T) {
	store := storeWith(t,
		chunk("d", 0, 1),
		chunk("c", 1, 0),
		chunk("a", 1, 0),
		chunk("b", 1, 1),
	)
	r := New(store, DefaultOptions())

	res, err := r.Search(context.Background(), "kb", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(res))
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-6)
}

func TestSearch_Deterministic(t *testing.T) {
	var chunks []commonModels.Chunk
	for i := 0; i < 50; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("doc-%05d", i), float32(i%3), float32(i%5), 1))
	}
	r := New(storeWith(t, chunks...), DefaultOptions())

	first, err := r.Search(context.Background(), "kb", []float32{1, 2, 3}, 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Search(context.Background(), "kb", []float32{1, 2, 3}, 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEffectiveK(t *testing.T) {
	r := New(nil, DefaultOptions())
	tests := []struct {
		in, want int
	}{
		{-3, 5},
		{0, 5},
		{1, 1},
		{7, 7},
		{20, 20},
		{500, 20},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, r.EffectiveK(tt.in))
		})
	}
}

func TestSearch_LimitsToK(t *testing.T) {
	var chunks []commonModels.Chunk
	for i := 0; i < 30; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("c%02d", i), 1, float32(i)))
	}
	r := New(storeWith(t, chunks...), DefaultOptions())

	res, err := r.Search(context.Background(), "kb", []float32{1, 1}, 0)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 5)

	res, err = r.Search(context.Background(), "kb", []float32{1, 1}, 100)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 20)
}

func TestSearch_MinScore(t *testing.T) {
	opts := DefaultOptions()
	opts.MinScore = 0.5
	r := New(storeWith(t, chunk("near", 1, 0.1), chunk("far", 0, 1)), opts)

	res, err := r.Search(context.Background(), "kb", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, ids(res))
}

func TestSearch_Errors(t *testing.T) {
	t.Run("unknown kb passes NotFound through", func(t *testing.T) {
		store := &MockStore{OnLoad: func(_ context.Context, kbId string) (index.Handle, error) {
			return nil, kbErrors.KnowledgeBaseNotFound(kbId)
		}}
		_, err := New(store, DefaultOptions()).Search(context.Background(), "missing", []float32{1}, 5)
		assert.ErrorIs(t, err, kbErrors.ErrNotFound)
		assert.NotErrorIs(t, err, kbErrors.ErrRetrieval)
	})

	t.Run("load failure", func(t *testing.T) {
		store := &MockStore{OnLoad: func(_ context.Context, kbId string) (index.Handle, error) {
			return nil, &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: "load", Err: errors.New("corrupt sidecar")}
		}}
		_, err := New(store, DefaultOptions()).Search(context.Background(), "kb", []float32{1}, 5)
		assert.ErrorIs(t, err, kbErrors.ErrRetrieval)
		assert.ErrorIs(t, err, kbErrors.ErrIndex)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := New(storeWith(t, chunk("a", 1, 0)), DefaultOptions()).Search(context.Background(), "kb", []float32{1, 0, 0}, 5)
		var retErr *kbErrors.RetrievalError
		require.True(t, errors.As(err, &retErr))
		assert.Equal(t, "kb", retErr.KnowledgeBaseId)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := New(storeWith(t), DefaultOptions()).Search(context.Background(), "kb", nil, 5)
		assert.ErrorIs(t, err, kbErrors.ErrRetrieval)
	})
}

func TestSearch_EmptyIndex(t *testing.T) {
	res, err := New(storeWith(t), DefaultOptions()).Search(context.Background(), "kb", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestRank_TieWithinEpsilon(t *testing.T) {
	scored := []commonModels.ScoredChunk{
		{Chunk: commonModels.Chunk{ChunkId: "z"}, Score: 0.8000004},
		{Chunk: commonModels.Chunk{ChunkId: "m"}, Score: 0.9},
		{Chunk: commonModels.Chunk{ChunkId: "a"}, Score: 0.8},
	}
	got := Rank(scored, 3, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "m", got[0].Chunk.ChunkId)
	assert.Equal(t, "a", got[1].Chunk.ChunkId)
	assert.Equal(t, "z", got[2].Chunk.ChunkId)
}
