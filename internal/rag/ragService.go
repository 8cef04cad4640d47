package rag

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/data/docstore"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/internal/rag/ingest"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/internal/rag/summary"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

/*
ARCHITECTURE NOTE: OPAQUE INTERFACE PATTERN
---------------------------------------------------------
Service is the public contract used by the handlers, the MCP tools and the worker.
service is the private struct holding the index, the gateway and the llm client, so
nothing outside this package reaches them directly. Every collaborator is an
interface, which lets the tests swap them for function-field mocks.
*/

var ErrEmptyQuestion = errors.New("question is empty")

// Service answers questions and runs build jobs for one or more knowledge bases.
type Service interface {
	Answer(ctx context.Context, kbId, question string) (commonModels.Answer, error)
	Search(ctx context.Context, kbId, query string, k int) (commonModels.QueryResult, error)
	Summary(ctx context.Context, kbId string) (commonModels.SummarySheet, error)
	BuildIndex(ctx context.Context, job jobModel.Job) jobModel.Job
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, kbId string, query []float32, k int) (commonModels.QueryResult, error)
}

type Builder interface {
	Build(ctx context.Context, kbId string, sources []ingest.Source) (commonModels.BuildSummary, error)
}

type Options struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

func OptionsFrom(s config.LLMSettings) Options {
	opts := Options{Timeout: config.AnswerTimeout, Temperature: s.Temperature, MaxTokens: s.MaxTokens}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = config.ModelMaxTokens
	}
	return opts
}

// Config wires the service. LLM may be nil, answers are then context only.
// Builder and Documents are only needed for build jobs.
type Config struct {
	Embedder  QueryEmbedder
	Retriever Searcher
	LLM       llm.Provider
	Index     index.Store
	Builder   Builder
	Documents docstore.Store
	Summaries *summary.Extractor
	Options   Options
}

type service struct {
	embedder    QueryEmbedder
	retriever   Searcher
	llmProvider llm.Provider
	index       index.Store
	builder     Builder
	documents   docstore.Store
	summaries   *summary.Extractor
	opts        Options
	logger      *logger_i.Logger
}

// NewService constructor
func NewService(cfg Config) Service {
	if cfg.Options.Timeout <= 0 {
		cfg.Options.Timeout = config.AnswerTimeout
	}
	if cfg.Summaries == nil {
		cfg.Summaries = summary.New(cfg.LLM)
	}
	return &service{
		embedder:    cfg.Embedder,
		retriever:   cfg.Retriever,
		llmProvider: cfg.LLM,
		index:       cfg.Index,
		builder:     cfg.Builder,
		documents:   cfg.Documents,
		summaries:   cfg.Summaries,
		opts:        cfg.Options,
		logger:      logger_i.NewLogger("RAG Service"),
	}
}

// Answer runs embed, retrieve, prompt, generate, parse. Retrieval failures surface,
// generation failures degrade to the retrieved context.
func (s *service) Answer(ctx context.Context, kbId, question string) (commonModels.Answer, error) {
	question = strings.TrimSpace(question)
	answer := commonModels.Answer{KnowledgeBaseId: kbId, Question: question, Citations: []commonModels.Citation{}}
	if question == "" {
		return answer, ErrEmptyQuestion
	}

	processContext, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	log := s.logger.FromContext(ctx).With("kbId", kbId)

	matches, err := s.retrieve(processContext, log, kbId, question, 0)
	if errors.Is(err, kbErrors.ErrNotFound) {
		log.Debug("no index for knowledge base")
		return noContext(answer), nil
	}
	if err != nil {
		return answer, err
	}
	if len(matches) == 0 {
		return noContext(answer), nil
	}

	if s.llmProvider == nil {
		log.Debug("no generation provider configured")
		return degraded(answer, matches), nil
	}

	prompt := BuildPrompt(question, matches, s.opts.Temperature, s.opts.MaxTokens)
	raw, err := s.executeLLMStep(processContext, log, prompt)
	if err != nil {
		log.Warn("generation failed, returning context only", "error", err)
		return degraded(answer, matches), nil
	}

	text, cited := ParseAnswer(raw, len(matches), kbId)
	answer.Text = text
	answer.Citations = citationsFor(matches, cited)
	metrics.CountAnswer("answered")
	return answer, nil
}

func (s *service) Search(ctx context.Context, kbId, query string, k int) (commonModels.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return commonModels.QueryResult{KnowledgeBaseId: kbId}, ErrEmptyQuestion
	}
	processContext, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	matches, err := s.retrieve(processContext, s.logger.FromContext(ctx).With("kbId", kbId), kbId, query, k)
	return commonModels.QueryResult{KnowledgeBaseId: kbId, Matches: matches}, err
}

// Summary serves the cached sheet and computes it on first use for indexes built without one.
func (s *service) Summary(ctx context.Context, kbId string) (commonModels.SummarySheet, error) {
	var sheet commonModels.SummarySheet
	data, err := s.index.GetArtifact(ctx, kbId, config.SummaryArtifact)
	if err == nil {
		if err := json.Unmarshal(data, &sheet); err == nil {
			return sheet, nil
		}
		s.logger.FromContext(ctx).Warn("cached summary sheet unreadable, rebuilding", "kbId", kbId)
	} else if !errors.Is(err, kbErrors.ErrNotFound) {
		return sheet, err
	}

	handle, err := s.index.Load(ctx, kbId)
	if err != nil {
		return sheet, err
	}
	chunks := handle.Chunks()
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Source != chunks[j].Source {
			return chunks[i].Source < chunks[j].Source
		}
		return chunks[i].Sequence < chunks[j].Sequence
	})

	processContext, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	sheet = s.summaries.Extract(processContext, chunks)
	if data, err := json.Marshal(sheet); err == nil {
		if err := s.index.PutArtifact(ctx, kbId, config.SummaryArtifact, data); err != nil {
			s.logger.FromContext(ctx).Warn("could not cache summary sheet", "kbId", kbId, "error", err)
		}
	}
	return sheet, nil
}

func (s *service) BuildIndex(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("build_job", time.Since(start)) }()

	kbId := job.JobPayload.KnowledgeBaseId
	log := s.logger.FromContext(ctx).With("jobId", job.Id, "kbId", kbId)
	if s.builder == nil || s.documents == nil {
		return s.jobError(job, errors.New("build pipeline not configured"), "BUILD_UNAVAILABLE", false)
	}

	job = logOutput(job, jobModel.DocumentListing, log)
	sources, err := ingest.DocStoreSources(ctx, s.documents, kbId)
	if err != nil {
		return s.jobError(job, err, "DOCUMENT_LISTING_FAILURE", true)
	}

	job = logOutput(job, jobModel.IndexBuilding, log)
	result, err := s.builder.Build(ctx, kbId, sources)
	job.JobPayload.Summary = &result
	if err != nil {
		retry := !errors.Is(err, ingest.ErrNoDocuments) && !errors.Is(err, ingest.ErrNothingIndexed)
		return s.jobError(job, err, "INDEX_BUILD_FAILURE", retry)
	}
	log.Info(result.String())
	return returnOutput(job)
}
