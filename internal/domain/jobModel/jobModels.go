package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	BuildInit       InternalStatus = "BuildInit"
	DocumentListing InternalStatus = "DocumentListing"
	IndexBuilding   InternalStatus = "IndexBuilding"
	Error           InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeBuild JobType = "Build"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	KnowledgeBaseId string                     `json:"kb_id"`
	Summary         *commonModels.BuildSummary `json:"summary,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// Fail marks the job as errored. retry tells the client whether queueing the same build again may succeed.
func (j Job) Fail(code int, message string, retry bool) Job {
	j.Error = JobError{Code: code, Message: message, Retry: retry}
	j.CurrentStep = Error
	j.Status = JobStatusError
	return j
}

// Finished reports whether the job reached a terminal status.
func (j Job) Finished() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusError
}
