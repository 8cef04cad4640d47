package mcpServer

import (
	"context"
	"strings"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskInput struct {
	KnowledgeBaseId string `json:"kb_id,omitempty" jsonschema:"knowledge base to ask, defaults to kb_global"`
	Question        string `json:"question" jsonschema:"the question about the tender documents"`
}

type AskOutput struct {
	Answer    string                  `json:"answer"`
	Citations []commonModels.Citation `json:"citations"`
	Degraded  bool                    `json:"degraded"`
	NoContext bool                    `json:"no_context"`
}

type SearchInput struct {
	KnowledgeBaseId string `json:"kb_id,omitempty" jsonschema:"knowledge base to search, defaults to kb_global"`
	Query           string `json:"query" jsonschema:"text to rank the chunks against"`
	K               int    `json:"k,omitempty" jsonschema:"number of chunks, default 5 and at most 20"`
}

type SearchOutput struct {
	Matches []SearchMatch `json:"matches"`
	Count   int           `json:"count"`
}

type SearchMatch struct {
	ChunkId     string  `json:"chunk_id"`
	SectionHint string  `json:"section_hint"`
	Score       float32 `json:"score"`
	Text        string  `json:"text"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed tender documents with section level citations",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Rank the indexed tender chunks against a query",
	}, s.handleSearch)
}

func kbOrDefault(kbId string) string {
	if kbId = strings.TrimSpace(kbId); kbId == "" {
		return config.DefaultKnowledgeBaseId
	}
	return kbId
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.service.Answer(ctx, kbOrDefault(input.KnowledgeBaseId), input.Question)
	if err != nil {
		s.logger.FromContext(ctx).Warn("ask tool failed", "error", err)
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{
		Answer:    answer.Text,
		Citations: answer.Citations,
		Degraded:  answer.Degraded,
		NoContext: answer.NoContext,
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	result, err := s.service.Search(ctx, kbOrDefault(input.KnowledgeBaseId), input.Query, input.K)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	out := SearchOutput{Matches: make([]SearchMatch, 0, len(result.Matches)), Count: len(result.Matches)}
	for _, m := range result.Matches {
		out.Matches = append(out.Matches, SearchMatch{
			ChunkId:     m.Chunk.ChunkId,
			SectionHint: m.Chunk.SectionHint,
			Score:       m.Score,
			Text:        m.Chunk.Text,
		})
	}
	return nil, out, nil
}
