package api

import (
	"time"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type BuildResult struct {
	KnowledgeBaseId string            `json:"kb_id" example:"kb_global"`
	Succeeded       int               `json:"succeeded" example:"4"`
	Skipped         []SkippedDocument `json:"skipped"`
	Chunks          int               `json:"chunks" example:"812"`
	Pages           int               `json:"pages" example:"96"`
	DurationMs      int64             `json:"duration_ms"`
}

type SkippedDocument struct {
	Source string `json:"source" example:"corrigendum.pdf"`
	Kind   string `json:"kind" example:"ParseError"`
	Reason string `json:"reason" example:"document is encrypted"`
}

type Result struct {
	Status      string       `json:"status"`
	CurrentStep string       `json:"current_step,omitempty"`
	Build       *BuildResult `json:"build,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type AskResponse struct {
	KnowledgeBaseId string                  `json:"kb_id" example:"kb_global"`
	Answer          string                  `json:"answer" example:"The EMD is Rs 50,000 [S1]."`
	Citations       []commonModels.Citation `json:"citations"`
	Context         []string                `json:"context,omitempty"`
	Degraded        bool                    `json:"degraded"`
}

type SearchResponse struct {
	KnowledgeBaseId string        `json:"kb_id"`
	Matches         []SearchMatch `json:"matches"`
}

type SearchMatch struct {
	ChunkId     string  `json:"chunk_id"`
	Source      string  `json:"source"`
	SectionHint string  `json:"section_hint"`
	Page        int     `json:"page"`
	Score       float32 `json:"score"`
	Text        string  `json:"text"`
}

type UploadResponse struct {
	KnowledgeBaseId string `json:"kb_id"`
	Document        string `json:"document" example:"tender_2024.pdf"`
}

type HealthResponse struct {
	Status            string `json:"status" example:"ok"`
	LLMProvider       string `json:"llm_provider" example:"gemini"`
	EmbeddingProvider string `json:"embedding_provider" example:"google"`
	IndexBackend      string `json:"index_backend" example:"local"`
}

// requests---------------------

type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	K     int    `json:"k,omitempty"`
}
