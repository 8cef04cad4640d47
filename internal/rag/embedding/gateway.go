package embedding

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"golang.org/x/time/rate"
)

type GatewayOptions struct {
	BatchSize         int
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
}

func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{
		BatchSize:         config.EmbeddingBatchSize,
		MaxAttempts:       config.EmbeddingMaxAttempts,
		BaseBackoff:       config.EmbeddingBaseBackoff,
		MaxBackoff:        config.EmbeddingMaxBackoff,
		RequestsPerSecond: config.EmbeddingRequestsPerSecond,
	}
}

func GatewayOptionsFrom(s config.EmbeddingSettings) GatewayOptions {
	opts := DefaultGatewayOptions()
	if s.BatchSize > 0 {
		opts.BatchSize = s.BatchSize
	}
	if s.MaxAttempts > 0 {
		opts.MaxAttempts = s.MaxAttempts
	}
	if s.RequestsPerSecond > 0 {
		opts.RequestsPerSecond = s.RequestsPerSecond
	}
	return opts
}

// Gateway batches, throttles and retries calls to a Provider.
type Gateway struct {
	provider Provider
	opts     GatewayOptions
	limiter  *rate.Limiter
	logger   *logger_i.Logger
}

func NewGateway(provider Provider, opts GatewayOptions) *Gateway {
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.EmbeddingBatchSize
	}
	if limit := provider.MaxBatch(); limit > 0 && opts.BatchSize > limit {
		opts.BatchSize = limit
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Gateway{
		provider: provider,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger_i.NewLogger("EmbeddingGateway").With("provider", provider.Name()),
	}
}

func (g *Gateway) ProviderName() string { return g.provider.Name() }

// Embed is uncached. See NewRun for the build path.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embed(ctx, texts, nil)
}

// EmbedQuery embeds one question. Queries are never cached.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.callWithRetry(ctx, []string{text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &kbErrors.EmbeddingError{BatchIndices: []int{0}, Err: err}
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, &kbErrors.EmbeddingError{BatchIndices: []int{0}, Err: errors.New("provider returned no vector")}
	}
	return vecs[0], nil
}

// Run is a gateway view whose cache lives for one index build of one knowledge base.
type Run struct {
	gateway         *Gateway
	knowledgeBaseId string
	cache           *vectorCache
}

// NewRun starts a cache scope. Caches are never shared across runs or knowledge bases.
func (g *Gateway) NewRun(kbId string) *Run {
	return &Run{gateway: g, knowledgeBaseId: kbId, cache: newVectorCache()}
}

func (r *Run) KnowledgeBaseId() string { return r.knowledgeBaseId }

func (r *Run) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return r.gateway.embed(ctx, texts, r.cache)
}

func (r *Run) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return r.gateway.EmbedQuery(ctx, text)
}

// CacheSize is the number of distinct texts embedded in this run.
func (r *Run) CacheSize() int { return r.cache.len() }

type vectorCache struct {
	mu   sync.RWMutex
	data map[[sha256.Size]byte][]float32
}

func newVectorCache() *vectorCache {
	return &vectorCache{data: make(map[[sha256.Size]byte][]float32)}
}

func (c *vectorCache) get(key [sha256.Size]byte) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *vectorCache) put(key [sha256.Size]byte, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

func (c *vectorCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// embed returns one vector per input. When some batches are exhausted it still returns the
// vectors it got, nil for the failed inputs, plus an EmbeddingError naming every failed index.
func (g *Gateway) embed(ctx context.Context, texts []string, cache *vectorCache) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	// identical texts are sent once; positions maps each unique text to its input indices
	var unique []string
	var keys [][sha256.Size]byte
	positions := make(map[[sha256.Size]byte][]int)
	for i, t := range texts {
		key := sha256.Sum256([]byte(t))
		if cache != nil {
			if v, ok := cache.get(key); ok {
				out[i] = v
				continue
			}
		}
		if _, seen := positions[key]; !seen {
			unique = append(unique, t)
			keys = append(keys, key)
		}
		positions[key] = append(positions[key], i)
	}

	log := g.logger
	var failed []int
	var causes []error
	dimension := 0
	for start := 0; start < len(unique); start += g.opts.BatchSize {
		end := min(start+g.opts.BatchSize, len(unique))
		vecs, err := g.callWithRetry(ctx, unique[start:end])
		if err == nil {
			err = checkBatch(vecs, end-start, &dimension)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			for _, key := range keys[start:end] {
				failed = append(failed, positions[key]...)
			}
			causes = append(causes, fmt.Errorf("batch %d-%d: %w", start, end-1, err))
			log.Warn("embedding batch exhausted", "from", start, "to", end-1, "error", err)
			continue
		}
		for j, v := range vecs {
			key := keys[start+j]
			for _, idx := range positions[key] {
				out[idx] = v
			}
			if cache != nil {
				cache.put(key, v)
			}
		}
	}

	if len(failed) > 0 {
		sort.Ints(failed)
		return out, &kbErrors.EmbeddingError{BatchIndices: failed, Err: errors.Join(causes...)}
	}
	return out, nil
}

func checkBatch(vecs [][]float32, want int, dimension *int) error {
	if len(vecs) != want {
		return fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), want)
	}
	for _, v := range vecs {
		if len(v) == 0 {
			return errors.New("provider returned an empty vector")
		}
		if *dimension == 0 {
			*dimension = len(v)
		}
		if len(v) != *dimension {
			return fmt.Errorf("dimension mismatch: got %d want %d", len(v), *dimension)
		}
	}
	return nil
}

func (g *Gateway) callWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var err error
	for attempt := 0; attempt < g.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.IncrementEmbeddingRetries()
			if werr := sleepCtx(ctx, backoff(g.opts.BaseBackoff, g.opts.MaxBackoff, attempt-1)); werr != nil {
				return nil, werr
			}
		}
		if werr := g.limiter.Wait(ctx); werr != nil {
			return nil, werr
		}

		start := time.Now()
		var vecs [][]float32
		vecs, err = g.provider.EmbedBatch(ctx, texts)
		metrics.CaptureExecutionMetrics("embed", time.Since(start))
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
		g.logger.Debug("transient embedding failure", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", g.opts.MaxAttempts, err)
}
