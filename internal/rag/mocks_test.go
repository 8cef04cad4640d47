package rag_test

import (
	"context"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/rag/ingest"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
)

type MockEmbedder struct {
	OnEmbedQuery func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if m.OnEmbedQuery != nil {
		return m.OnEmbedQuery(ctx, text)
	}
	return []float32{1, 0}, nil
}

type MockSearcher struct {
	OnSearch func(ctx context.Context, kbId string, q []float32, k int) (commonModels.QueryResult, error)
}

func (m *MockSearcher) Search(ctx context.Context, kbId string, q []float32, k int) (commonModels.QueryResult, error) {
	return m.OnSearch(ctx, kbId, q, k)
}

// MockLLM implements llm.Provider and counts calls
type MockLLM struct {
	Calls      int
	OnGenerate func(ctx context.Context, p llm.Prompt) (string, error)
}

func (m *MockLLM) Name() string { return "mock" }

func (m *MockLLM) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	m.Calls++
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, p)
	}
	return "mocked llm response [S1]", nil
}

type MockBuilder struct {
	OnBuild func(ctx context.Context, kbId string, sources []ingest.Source) (commonModels.BuildSummary, error)
}

func (m *MockBuilder) Build(ctx context.Context, kbId string, sources []ingest.Source) (commonModels.BuildSummary, error) {
	return m.OnBuild(ctx, kbId, sources)
}
