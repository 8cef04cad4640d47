package hashEmbedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"

	"github.com/akolanti/TenderRAG/internal/config"
)

// Embedder hashes word features into a fixed size vector. It needs no network and is
// deterministic, which makes it the offline default and the test double for real providers.
type Embedder struct {
	dimension int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = config.HashEmbeddingDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string   { return config.EmbeddingProviderHash }
func (e *Embedder) MaxBatch() int  { return 0 }
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.Vector(t)
	}
	return out, nil
}

// Vector is always unit length. Text without word characters maps to the first basis vector.
func (e *Embedder) Vector(text string) []float32 {
	v := make([]float64, e.dimension)
	words := features(text)
	for i, w := range words {
		e.add(v, w, 1)
		if i > 0 {
			e.add(v, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float32, e.dimension)
	if norm == 0 {
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

func (e *Embedder) add(v []float64, feature string, weight float64) {
	sum := sha256.Sum256([]byte(feature))
	idx := binary.BigEndian.Uint32(sum[:4]) % uint32(e.dimension)
	if sum[4]&1 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

func features(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
