package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testOptions(batch int) GatewayOptions {
	return GatewayOptions{BatchSize: batch, MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

type countingProvider struct {
	calls   atomic.Int32
	batches [][]string
	onEmbed func(call int, texts []string) ([][]float32, error)
}

func (p *countingProvider) provider() ProviderFunc {
	return ProviderFunc{ProviderName: "fake", OnEmbed: func(_ context.Context, texts []string) ([][]float32, error) {
		call := int(p.calls.Add(1))
		p.batches = append(p.batches, append([]string(nil), texts...))
		if p.onEmbed != nil {
			return p.onEmbed(call, texts)
		}
		out := make([][]float32, len(texts))
		for i, t := range texts {
			out[i] = vectorFor(t)
		}
		return out, nil
	}}
}

func TestEmbed_BatchesPreserveOrder(t *testing.T) {
	p := &countingProvider{}
	g := NewGateway(p.provider(), testOptions(2))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	out, err := g.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.calls.Load())
	for i, text := range texts {
		assert.Equal(t, vectorFor(text), out[i])
	}
}

func TestNewGateway_RespectsProviderMaxBatch(t *testing.T) {
	p := &countingProvider{}
	provider := p.provider()
	provider.Batch = 1
	g := NewGateway(provider, testOptions(64))

	_, err := g.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestEmbed_RetriesTransientFailures(t *testing.T) {
	p := &countingProvider{}
	p.onEmbed = func(call int, texts []string) ([][]float32, error) {
		if call < 3 {
			return nil, status.Error(codes.ResourceExhausted, "quota")
		}
		return [][]float32{vectorFor(texts[0])}, nil
	}
	g := NewGateway(p.provider(), testOptions(8))

	out, err := g.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, vectorFor("hello"), out[0])
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestEmbed_ExhaustionReportsFailingIndices(t *testing.T) {
	p := &countingProvider{}
	p.onEmbed = func(_ int, texts []string) ([][]float32, error) {
		for _, text := range texts {
			if strings.HasPrefix(text, "bad") {
				return nil, Transient(errors.New("503 from upstream"))
			}
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = vectorFor(text)
		}
		return out, nil
	}
	g := NewGateway(p.provider(), testOptions(2))

	texts := []string{"ok0", "ok1", "bad2", "ok3", "ok4", "ok5"}
	out, err := g.Embed(context.Background(), texts)
	require.Error(t, err)

	var embErr *kbErrors.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, []int{2, 3}, embErr.BatchIndices)
	assert.ErrorIs(t, err, kbErrors.ErrEmbedding)

	assert.Nil(t, out[2])
	assert.Nil(t, out[3])
	assert.Equal(t, vectorFor("ok5"), out[5])
	// 1 call for the first batch, 3 attempts for the failing one, 1 for the last
	assert.EqualValues(t, 5, p.calls.Load())
}

func TestEmbed_NonTransientFailsWithoutRetry(t *testing.T) {
	p := &countingProvider{}
	p.onEmbed = func(int, []string) ([][]float32, error) {
		return nil, status.Error(codes.InvalidArgument, "bad model")
	}
	g := NewGateway(p.provider(), testOptions(8))

	_, err := g.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, kbErrors.ErrEmbedding)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestEmbed_DimensionMismatchFailsBatch(t *testing.T) {
	p := &countingProvider{}
	p.onEmbed = func(_ int, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}, {1, 2, 3}}, nil
	}
	g := NewGateway(p.provider(), testOptions(8))

	_, err := g.Embed(context.Background(), []string{"a", "b"})
	var embErr *kbErrors.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, []int{0, 1}, embErr.BatchIndices)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestEmbed_CancelledContext(t *testing.T) {
	p := &countingProvider{}
	g := NewGateway(p.provider(), testOptions(8))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, p.calls.Load())
}

func TestRun_CacheIsScopedToTheRun(t *testing.T) {
	p := &countingProvider{}
	g := NewGateway(p.provider(), testOptions(8))

	run := g.NewRun("kb_a")
	_, err := run.Embed(context.Background(), []string{"same", "same", "other"})
	require.NoError(t, err)
	require.Len(t, p.batches, 1)
	assert.Equal(t, []string{"same", "other"}, p.batches[0])
	assert.Equal(t, 2, run.CacheSize())

	out, err := run.Embed(context.Background(), []string{"other", "same"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.calls.Load())
	assert.Equal(t, vectorFor("other"), out[0])

	other := g.NewRun("kb_b")
	_, err = other.Embed(context.Background(), []string{"same"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
	assert.Equal(t, "kb_b", other.KnowledgeBaseId())
}

func TestEmbedQuery_NeverCached(t *testing.T) {
	p := &countingProvider{}
	g := NewGateway(p.provider(), testOptions(8))
	run := g.NewRun("kb")

	for i := 0; i < 2; i++ {
		v, err := run.EmbedQuery(context.Background(), "what is the emd?")
		require.NoError(t, err)
		assert.Equal(t, vectorFor("what is the emd?"), v)
	}
	assert.EqualValues(t, 2, p.calls.Load())
	assert.Zero(t, run.CacheSize())
}

func TestEmbedQuery_Failure(t *testing.T) {
	p := &countingProvider{}
	p.onEmbed = func(int, []string) ([][]float32, error) { return nil, errors.New("boom") }
	g := NewGateway(p.provider(), testOptions(8))

	_, err := g.EmbedQuery(context.Background(), "q")
	var embErr *kbErrors.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, []int{0}, embErr.BatchIndices)
}

func TestBackoff(t *testing.T) {
	base, max := 200*time.Millisecond, 5*time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 200 * time.Millisecond},
		{0, 200 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{3, 1600 * time.Millisecond},
		{5, 5 * time.Second},
		{62, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, backoff(base, max, tt.attempt))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked", Transient(errors.New("429")), true},
		{"wrapped mark", fmt.Errorf("call: %w", Transient(errors.New("503"))), true},
		{"deadline", context.DeadlineExceeded, true},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"plain", errors.New("bad request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	assert.True(t, IsTransientStatus(429))
	assert.True(t, IsTransientStatus(503))
	assert.False(t, IsTransientStatus(400))
}
