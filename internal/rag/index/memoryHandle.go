package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
)

// memoryHandle keeps unit vectors in memory and scores them with a dot product.
type memoryHandle struct {
	kbId      string
	buildId   string
	dimension int
	chunks    []commonModels.Chunk
	vectors   [][]float32
	byId      map[string]int
}

// NewMemoryHandle builds a handle over chunks that already carry embeddings.
func NewMemoryHandle(kbId, buildId string, chunks []commonModels.Chunk) (Handle, error) {
	dimension, err := ValidateChunks(kbId, chunks)
	if err != nil {
		return nil, err
	}
	sorted := append([]commonModels.Chunk(nil), chunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkId < sorted[j].ChunkId })

	h := &memoryHandle{
		kbId:      kbId,
		buildId:   buildId,
		dimension: dimension,
		chunks:    sorted,
		vectors:   make([][]float32, len(sorted)),
		byId:      make(map[string]int, len(sorted)),
	}
	for i, c := range sorted {
		h.vectors[i] = normalize(c.Embedding)
		h.byId[c.ChunkId] = i
	}
	return h, nil
}

func (h *memoryHandle) KnowledgeBaseId() string { return h.kbId }
func (h *memoryHandle) BuildId() string         { return h.buildId }
func (h *memoryHandle) Len() int                { return len(h.chunks) }
func (h *memoryHandle) Dimension() int          { return h.dimension }

func (h *memoryHandle) Chunk(id string) (commonModels.Chunk, bool) {
	i, ok := h.byId[id]
	if !ok {
		return commonModels.Chunk{}, false
	}
	return h.chunks[i], true
}

func (h *memoryHandle) Chunks() []commonModels.Chunk {
	return append([]commonModels.Chunk(nil), h.chunks...)
}

func (h *memoryHandle) Similarities(ctx context.Context, query []float32) ([]commonModels.ScoredChunk, error) {
	if len(h.chunks) == 0 {
		return nil, nil
	}
	if len(query) != h.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), h.dimension)
	}
	q := normalize(query)
	out := make([]commonModels.ScoredChunk, len(h.chunks))
	for i, v := range h.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = commonModels.ScoredChunk{Chunk: h.chunks[i], Score: dot(q, v)}
	}
	return out, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
