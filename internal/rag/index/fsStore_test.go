package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id string, v ...float32) commonModels.Chunk {
	return commonModels.Chunk{
		ChunkId:     id,
		Source:      "tender.pdf",
		SectionHint: "tender.pdf | " + id,
		Text:        "text of " + id,
		Embedding:   v,
	}
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s := NewFileStore(t.TempDir())
	tick := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func TestFileStore_BuildAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	chunks := []commonModels.Chunk{chunk("c-2", 0, 1, 0), chunk("c-1", 1, 0, 0), chunk("c-3", 0.9, 0.1, 0)}

	built, err := s.Build(ctx, "kb_global", chunks, BuildInfo{EmbeddingProvider: "hash", MaxTokens: 400, OverlapTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, 3, built.Len())

	// a second store on the same root reads what the first one wrote
	fresh := NewFileStore(s.Root())
	loaded, err := fresh.Load(ctx, "kb_global")
	require.NoError(t, err)
	assert.Equal(t, built.BuildId(), loaded.BuildId())
	assert.Equal(t, 3, loaded.Dimension())
	assert.Equal(t, "kb_global", loaded.KnowledgeBaseId())

	c, ok := loaded.Chunk("c-1")
	require.True(t, ok)
	assert.Equal(t, "tender.pdf | c-1", c.SectionHint)
	assert.Equal(t, "kb_global", c.KnowledgeBaseId)

	scored, err := loaded.Similarities(ctx, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, scored, 3)
	best := scored[0]
	for _, sc := range scored {
		if sc.Score > best.Score {
			best = sc
		}
	}
	assert.Equal(t, "c-1", best.Chunk.ChunkId)
	assert.InDelta(t, 1.0, best.Score, 1e-5)

	m, err := fresh.Manifest("kb_global")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Vectors)
	assert.Equal(t, "hash", m.EmbeddingProvider)
	assert.Equal(t, 400, m.MaxTokens)
}

func TestFileStore_LoadUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "kb_missing")
	assert.ErrorIs(t, err, kbErrors.ErrNotFound)

	_, err = s.Manifest("kb_missing")
	assert.ErrorIs(t, err, kbErrors.ErrNotFound)
}

func TestFileStore_RebuildReplacesIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Build(ctx, "kb", []commonModels.Chunk{chunk("old", 1, 0)}, BuildInfo{})
	require.NoError(t, err)
	second, err := s.Build(ctx, "kb", []commonModels.Chunk{chunk("new-1", 0, 1), chunk("new-2", 1, 1)}, BuildInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, first.BuildId(), second.BuildId())

	loaded, err := NewFileStore(s.Root()).Load(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, second.BuildId(), loaded.BuildId())
	_, ok := loaded.Chunk("old")
	assert.False(t, ok)
	assert.Equal(t, 2, loaded.Len())

	leftovers, err := os.ReadDir(filepath.Join(s.Root(), config.IndexStagingDir))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_FailedBuildKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	good, err := s.Build(ctx, "kb", []commonModels.Chunk{chunk("a", 1, 0)}, BuildInfo{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		chunks []commonModels.Chunk
	}{
		{"dimension mismatch", []commonModels.Chunk{chunk("a", 1, 0), chunk("b", 1, 0, 0)}},
		{"missing embedding", []commonModels.Chunk{chunk("a")}},
		{"duplicate id", []commonModels.Chunk{chunk("a", 1, 0), chunk("a", 0, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Build(ctx, "kb", tt.chunks, BuildInfo{})
			require.Error(t, err)
			assert.ErrorIs(t, err, kbErrors.ErrIndex)

			loaded, err := NewFileStore(s.Root()).Load(ctx, "kb")
			require.NoError(t, err)
			assert.Equal(t, good.BuildId(), loaded.BuildId())
		})
	}
}

func TestFileStore_QueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h, err := s.Build(ctx, "kb", []commonModels.Chunk{chunk("a", 1, 0)}, BuildInfo{})
	require.NoError(t, err)

	_, err = h.Similarities(ctx, []float32{1, 0, 0})
	assert.Error(t, err)
	_, err = h.Similarities(ctx, []float32{0, 0})
	assert.Error(t, err)
}

func TestFileStore_Artifacts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.PutArtifact(ctx, "kb", config.SummaryArtifact, []byte("{}"))
	assert.ErrorIs(t, err, kbErrors.ErrNotFound)

	_, err = s.Build(ctx, "kb", []commonModels.Chunk{chunk("a", 1, 0)}, BuildInfo{})
	require.NoError(t, err)
	require.NoError(t, s.PutArtifact(ctx, "kb", config.SummaryArtifact, []byte(`{"issuer":"PWD"}`)))

	data, err := s.GetArtifact(ctx, "kb", config.SummaryArtifact)
	require.NoError(t, err)
	assert.JSONEq(t, `{"issuer":"PWD"}`, string(data))

	_, err = s.GetArtifact(ctx, "kb", "other.json")
	assert.ErrorIs(t, err, kbErrors.ErrNotFound)

	// names never escape the build directory
	require.NoError(t, s.PutArtifact(ctx, "kb", "../../escape.json", []byte("x")))
	m, err := s.Manifest("kb")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(s.Root(), "kb", config.IndexBuildsDir, m.BuildId, "escape.json"))
	assert.NoError(t, err)

	// a rebuild starts without the artifacts of the previous build
	_, err = s.Build(ctx, "kb", []commonModels.Chunk{chunk("b", 0, 1)}, BuildInfo{})
	require.NoError(t, err)
	_, err = s.GetArtifact(ctx, "kb", config.SummaryArtifact)
	assert.ErrorIs(t, err, kbErrors.ErrNotFound)
}

func TestFileStore_ReadersNeverSeeAMissingIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Build(ctx, "kb", []commonModels.Chunk{chunk("seed", 1, 0)}, BuildInfo{})
	require.NoError(t, err)

	var reads, failures atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// a fresh store per read skips the handle cache and always goes to disk
			for {
				select {
				case <-stop:
					return
				default:
				}
				h, err := NewFileStore(s.Root()).Load(ctx, "kb")
				reads.Add(1)
				if err != nil || h.Len() == 0 {
					failures.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		_, err := s.Build(ctx, "kb", []commonModels.Chunk{chunk(fmt.Sprintf("c-%d", i), 1, float32(i))}, BuildInfo{})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Positive(t, reads.Load())
	assert.Zero(t, failures.Load())
}

func TestFileStore_PrunesOldBuilds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var last Handle
	for i := 0; i < 4; i++ {
		h, err := s.Build(ctx, "kb", []commonModels.Chunk{chunk("a", 1, float32(i))}, BuildInfo{})
		require.NoError(t, err)
		last = h
	}

	entries, err := os.ReadDir(filepath.Join(s.Root(), "kb", config.IndexBuildsDir))
	require.NoError(t, err)
	assert.Len(t, entries, config.IndexBuildsKept)

	pointer, err := os.ReadFile(filepath.Join(s.Root(), "kb", config.IndexPointerFile))
	require.NoError(t, err)
	assert.Equal(t, last.BuildId()+"\n", string(pointer))
}

func TestFileStore_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h, err := s.Build(ctx, "kb", nil, BuildInfo{})
	require.NoError(t, err)
	assert.Zero(t, h.Len())

	scored, err := h.Similarities(ctx, []float32{1})
	require.NoError(t, err)
	assert.Empty(t, scored)
}
