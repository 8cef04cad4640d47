package hashEmbedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestVector_DeterministicAndNormalized(t *testing.T) {
	e := New(0)
	a := e.Vector("EMD amount is Rs 50,000")
	b := e.Vector("EMD amount is Rs 50,000")
	require.Len(t, a, 384)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a, a)), 1e-5)
}

func TestVector_LexicalOverlapRanksHigher(t *testing.T) {
	e := New(256)
	q := e.Vector("What is the EMD amount?")
	related := e.Vector("The EMD amount for this tender is Rs 50,000")
	unrelated := e.Vector("Delivery of pumps within ninety days of award")
	assert.Greater(t, cosine(q, related), cosine(q, unrelated))
}

func TestVector_EmptyText(t *testing.T) {
	v := New(8).Vector(" .,; ")
	assert.Equal(t, []float32{1, 0, 0, 0, 0, 0, 0, 0}, v)
}

func TestEmbedBatch_OrderAndCancel(t *testing.T) {
	e := New(16)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, e.Vector("a"), out[0])
	assert.Equal(t, e.Vector("b"), out[1])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
