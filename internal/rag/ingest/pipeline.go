package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/internal/rag/chunker"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/internal/rag/parser"
	"github.com/akolanti/TenderRAG/internal/rag/summary"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoDocuments    = errors.New("no pdf documents found")
	ErrNothingIndexed = errors.New("every document was skipped")
)

const reasonNoText = "no extractable text"

type DocumentParser interface {
	Parse(ctx context.Context, doc commonModels.Document) (parser.Result, error)
}

type Options struct {
	Workers  int
	Chunking chunker.Options
}

func DefaultOptions() Options {
	return Options{Workers: config.IngestWorkers, Chunking: chunker.DefaultOptions()}
}

// Pipeline turns sources into one knowledge base index: parse, chunk, embed, build.
type Pipeline struct {
	parser    DocumentParser
	gateway   *embedding.Gateway
	store     index.Store
	locker    index.Locker
	summaries *summary.Extractor
	opts      Options
	logger    *logger_i.Logger
}

func New(p DocumentParser, gateway *embedding.Gateway, store index.Store, locker index.Locker, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = config.IngestWorkers
	}
	if locker == nil {
		locker = index.NewKeyedMutex()
	}
	return &Pipeline{
		parser:  p,
		gateway: gateway,
		store:   store,
		locker:  locker,
		opts:    opts,
		logger:  logger_i.NewLogger("IngestPipeline"),
	}
}

// WithSummaries precomputes the summary sheet after every successful build.
func (p *Pipeline) WithSummaries(e *summary.Extractor) *Pipeline {
	p.summaries = e
	return p
}

type parsed struct {
	report commonModels.DocumentReport
	chunks []commonModels.Chunk
	skip   *commonModels.SkippedDocument
}

// Build indexes sources into kbId. Per document failures are reported in the summary;
// the returned error is set only when nothing could be indexed or the index write failed.
func (p *Pipeline) Build(ctx context.Context, kbId string, sources []Source) (commonModels.BuildSummary, error) {
	start := time.Now()
	result := commonModels.BuildSummary{KnowledgeBaseId: kbId}
	defer func() { metrics.CaptureExecutionMetrics("kb_build", time.Since(start)) }()

	log := p.logger.FromContext(ctx).With("kbId", kbId)
	if len(sources) == 0 {
		return result, ErrNoDocuments
	}

	unlock, err := p.locker.Lock(ctx, kbId)
	if err != nil {
		return result, fmt.Errorf("wait for build lock: %w", err)
	}
	defer unlock()

	docs, err := p.parseAll(ctx, kbId, sources)
	if err != nil {
		return result, err
	}

	chunks, err := p.embedAll(ctx, kbId, docs)
	if err != nil {
		return result, err
	}

	for _, d := range docs {
		if d.skip != nil {
			result.Skipped = append(result.Skipped, *d.skip)
			metrics.CountBuildDocument("skipped")
			log.Warn("document skipped", "source", d.skip.Source, "kind", d.skip.Kind, "reason", d.skip.Reason)
			continue
		}
		result.Succeeded = append(result.Succeeded, d.report)
		result.Chunks += d.report.Chunks - d.report.FailedChunks
		result.Pages += d.report.Pages
		metrics.CountBuildDocument("succeeded")
	}
	result.Duration = time.Since(start)

	if len(result.Succeeded) == 0 {
		return result, ErrNothingIndexed
	}

	info := index.BuildInfo{
		EmbeddingProvider: p.gateway.ProviderName(),
		MaxTokens:         p.opts.Chunking.MaxTokens,
		OverlapTokens:     p.opts.Chunking.OverlapTokens,
	}
	if _, err := p.store.Build(ctx, kbId, chunks, info); err != nil {
		return result, err
	}
	p.storeSummary(ctx, kbId, chunks)

	result.Duration = time.Since(start)
	log.Info("knowledge base built", "succeeded", len(result.Succeeded), "skipped", len(result.Skipped), "chunks", result.Chunks)
	return result, nil
}

// parseAll parses and chunks with bounded parallelism. Output keeps source order.
func (p *Pipeline) parseAll(ctx context.Context, kbId string, sources []Source) ([]parsed, error) {
	out := make([]parsed, len(sources))
	seen := make(map[string]bool, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, src := range sources {
		if seen[src.Name] {
			out[i] = parsed{skip: &commonModels.SkippedDocument{Source: src.Name, Kind: "Error", Reason: "duplicate document name"}}
			continue
		}
		seen[src.Name] = true
		g.Go(func() error {
			d, err := p.parseOne(gctx, kbId, src)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseOne only returns an error for cancellation; document failures become skips.
func (p *Pipeline) parseOne(ctx context.Context, kbId string, src Source) (parsed, error) {
	skip := func(kind, reason string) (parsed, error) {
		return parsed{skip: &commonModels.SkippedDocument{Source: src.Name, Kind: kind, Reason: reason}}, nil
	}

	raw, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return parsed{}, ctx.Err()
		}
		return skip(kbErrors.Kind(err), "open: "+err.Error())
	}
	doc := commonModels.NewDocument(src.Name, raw)

	res, err := p.parser.Parse(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return parsed{}, ctx.Err()
		}
		return skip(kbErrors.Kind(err), err.Error())
	}

	chunks := chunker.Chunk(doc, res.Nodes, p.opts.Chunking)
	if len(chunks) == 0 {
		return skip("ParseError", reasonNoText)
	}
	for i := range chunks {
		chunks[i].KnowledgeBaseId = kbId
	}
	return parsed{
		report: commonModels.DocumentReport{
			Source:     src.Name,
			DocumentId: doc.Id,
			Pages:      res.Pages,
			Chunks:     len(chunks),
			Strategy:   res.Strategy,
		},
		chunks: chunks,
	}, nil
}

// embedAll embeds every chunk through one run. Chunks of failed batches are dropped and a
// document whose chunks all failed is turned into a skip.
func (p *Pipeline) embedAll(ctx context.Context, kbId string, docs []parsed) ([]commonModels.Chunk, error) {
	var texts []string
	for _, d := range docs {
		for _, c := range d.chunks {
			texts = append(texts, c.Text)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	run := p.gateway.NewRun(kbId)
	vectors, err := run.Embed(ctx, texts)
	var embErr *kbErrors.EmbeddingError
	if err != nil && !errors.As(err, &embErr) {
		return nil, err
	}
	p.logger.FromContext(ctx).Debug("chunks embedded", "kbId", kbId, "texts", len(texts), "distinct", run.CacheSize())

	chunks := make([]commonModels.Chunk, 0, len(texts))
	pos := 0
	for i := range docs {
		d := &docs[i]
		if d.skip != nil {
			continue
		}
		kept := 0
		for _, c := range d.chunks {
			v := vectors[pos]
			pos++
			if v == nil {
				d.report.FailedChunks++
				continue
			}
			c.Embedding = v
			chunks = append(chunks, c)
			kept++
		}
		if kept == 0 {
			d.skip = &commonModels.SkippedDocument{Source: d.report.Source, Kind: kbErrors.Kind(embErr), Reason: embErr.Error()}
		}
	}
	return chunks, nil
}

func (p *Pipeline) storeSummary(ctx context.Context, kbId string, chunks []commonModels.Chunk) {
	if p.summaries == nil {
		return
	}
	log := p.logger.FromContext(ctx).With("kbId", kbId)
	sheet := p.summaries.Extract(ctx, chunks)
	data, err := json.Marshal(sheet)
	if err != nil {
		log.Error("could not encode summary sheet", "error", err)
		return
	}
	if err := p.store.PutArtifact(ctx, kbId, config.SummaryArtifact, data); err != nil {
		log.Error("could not store summary sheet", "error", err)
	}
}
