package adapter

import (
	"fmt"

	"github.com/akolanti/TenderRAG/internal/api"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:      string(job.Status),
		CurrentStep: string(job.CurrentStep),
		Build:       ToBuildResult(job.JobPayload.Summary),
	}

	response := api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		Error:     errorPtr,
		Result:    result,
	}
	if job.Finished() {
		end := job.EndTime
		response.EndTime = &end
	}
	return response
}

func ToBuildResult(summary *commonModels.BuildSummary) *api.BuildResult {
	if summary == nil {
		return nil
	}
	skipped := make([]api.SkippedDocument, 0, len(summary.Skipped))
	for _, s := range summary.Skipped {
		skipped = append(skipped, api.SkippedDocument{Source: s.Source, Kind: s.Kind, Reason: s.Reason})
	}
	return &api.BuildResult{
		KnowledgeBaseId: summary.KnowledgeBaseId,
		Succeeded:       len(summary.Succeeded),
		Skipped:         skipped,
		Chunks:          summary.Chunks,
		Pages:           summary.Pages,
		DurationMs:      summary.Duration.Milliseconds(),
	}
}

func ToAskResponse(answer commonModels.Answer) api.AskResponse {
	citations := answer.Citations
	if citations == nil {
		citations = []commonModels.Citation{}
	}
	return api.AskResponse{
		KnowledgeBaseId: answer.KnowledgeBaseId,
		Answer:          answer.Text,
		Citations:       citations,
		Context:         answer.Context,
		Degraded:        answer.Degraded,
	}
}

func ToSearchResponse(result commonModels.QueryResult) api.SearchResponse {
	matches := make([]api.SearchMatch, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, api.SearchMatch{
			ChunkId:     m.Chunk.ChunkId,
			Source:      m.Chunk.Source,
			SectionHint: m.Chunk.SectionHint,
			Page:        m.Chunk.Page,
			Score:       m.Score,
			Text:        m.Chunk.Text,
		})
	}
	return api.SearchResponse{KnowledgeBaseId: result.KnowledgeBaseId, Matches: matches}
}

// BadRequest is the error envelope shared by every endpoint. id is a job id, a kb id or a trace id.
func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id: id,
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
