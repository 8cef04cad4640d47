package rag

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/internal/rag/ingest"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

func returnOutput(job jobModel.Job) jobModel.Job {
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("BuildIndex", "Current Status", job.CurrentStep)
	return job
}

func (s *service) jobError(job jobModel.Job, err error, message string, canRetry bool) jobModel.Job {
	s.logger.Error(message, "jobId", job.Id, "error", err)

	code, text := http.StatusInternalServerError, "Internal Server Error"
	switch {
	case errors.Is(err, ingest.ErrNoDocuments), errors.Is(err, ingest.ErrNothingIndexed):
		code, text = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, kbErrors.ErrIndex):
		text = "Index write failed"
	}
	return job.Fail(code, text, canRetry)
}

func noContext(a commonModels.Answer) commonModels.Answer {
	metrics.CountAnswer("no_context")
	a.Text = config.NoContextAnswer
	a.NoContext = true
	a.Citations = []commonModels.Citation{}
	return a
}

func degraded(a commonModels.Answer, matches []commonModels.ScoredChunk) commonModels.Answer {
	metrics.CountAnswer("degraded")
	a.Text = config.DegradedAnswer
	a.Degraded = true
	a.Citations = allCitations(matches)
	a.Context = make([]string, 0, len(matches))
	for _, m := range matches {
		a.Context = append(a.Context, m.Chunk.Text)
	}
	return a
}

// retrieve embeds the question and searches. A failed question embedding is a RetrievalError.
func (s *service) retrieve(ctx context.Context, log *logger_i.Logger, kbId, question string, k int) ([]commonModels.ScoredChunk, error) {
	start := time.Now()
	vector, err := s.embedder.EmbedQuery(ctx, question)
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		log.Error("question embedding failed", "error", err)
		return nil, &kbErrors.RetrievalError{KnowledgeBaseId: kbId, Err: err}
	}

	result, err := s.retriever.Search(ctx, kbId, vector, k)
	if err != nil {
		return nil, err
	}
	log.Debug("retrieved", "matches", len(result.Matches))
	return result.Matches, nil
}

func (s *service) executeLLMStep(ctx context.Context, log *logger_i.Logger, prompt llm.Prompt) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("generate", time.Since(start)) }()

	raw, err := s.llmProvider.Generate(ctx, prompt)
	if err != nil {
		return "", &kbErrors.GenerationError{Provider: s.llmProvider.Name(), Err: err}
	}
	log.Debug("generated", "chars", len(raw))
	return raw, nil
}
