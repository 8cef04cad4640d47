package retriever

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

type Options struct {
	DefaultK int
	MaxK     int
	MinScore float32
}

func DefaultOptions() Options {
	return Options{DefaultK: config.DefaultTopK, MaxK: config.MaxTopK, MinScore: config.DefaultMinScore}
}

func OptionsFrom(s config.RetrievalSettings) Options {
	opts := DefaultOptions()
	if s.TopK > 0 {
		opts.DefaultK = s.TopK
	}
	if s.MaxTopK > 0 {
		opts.MaxK = s.MaxTopK
	}
	opts.MinScore = s.MinScore
	return opts
}

// Retriever runs exact cosine top-k over a loaded index.
type Retriever struct {
	store  index.Store
	opts   Options
	logger *logger_i.Logger
}

func New(store index.Store, opts Options) *Retriever {
	if opts.DefaultK <= 0 {
		opts.DefaultK = config.DefaultTopK
	}
	if opts.MaxK <= 0 {
		opts.MaxK = config.MaxTopK
	}
	opts.DefaultK = min(opts.DefaultK, opts.MaxK)
	return &Retriever{store: store, opts: opts, logger: logger_i.NewLogger("Retriever")}
}

// EffectiveK applies the default and the upper bound to a requested k.
func (r *Retriever) EffectiveK(k int) int {
	if k <= 0 {
		return r.opts.DefaultK
	}
	return min(k, r.opts.MaxK)
}

// Search returns NotFoundError when kbId has no index and RetrievalError for anything else that fails.
func (r *Retriever) Search(ctx context.Context, kbId string, query []float32, k int) (commonModels.QueryResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("retrieve", time.Since(start)) }()

	result := commonModels.QueryResult{KnowledgeBaseId: kbId}
	if len(query) == 0 {
		return result, &kbErrors.RetrievalError{KnowledgeBaseId: kbId, Err: errors.New("empty query vector")}
	}

	handle, err := r.store.Load(ctx, kbId)
	if err != nil {
		if errors.Is(err, kbErrors.ErrNotFound) {
			return result, err
		}
		return result, &kbErrors.RetrievalError{KnowledgeBaseId: kbId, Err: err}
	}

	scored, err := handle.Similarities(ctx, query)
	if err != nil {
		r.logger.FromContext(ctx).Error("similarity search failed", "kbId", kbId, "buildId", handle.BuildId(), "error", err)
		return result, &kbErrors.RetrievalError{KnowledgeBaseId: kbId, Err: err}
	}

	result.Matches = Rank(scored, r.EffectiveK(k), r.opts.MinScore)
	return result, nil
}

// Rank orders by descending score. Scores within TieEpsilon are equal and fall back to ascending chunk id.
func Rank(scored []commonModels.ScoredChunk, k int, minScore float32) []commonModels.ScoredChunk {
	ranked := make([]commonModels.ScoredChunk, 0, len(scored))
	for _, s := range scored {
		if minScore > 0 && s.Score < minScore {
			continue
		}
		if math.IsNaN(float64(s.Score)) {
			continue
		}
		ranked = append(ranked, s)
	}
	// the tie rule is not transitive, so the input order is fixed first
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Chunk.ChunkId < ranked[j].Chunk.ChunkId })
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if math.Abs(float64(a.Score)-float64(b.Score)) <= config.TieEpsilon {
			return a.Chunk.ChunkId < b.Chunk.ChunkId
		}
		return a.Score > b.Score
	})
	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
