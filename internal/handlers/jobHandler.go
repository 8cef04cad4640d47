package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/akolanti/TenderRAG/internal/job"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})
}

// CreateBuildJob queues a rebuild of one knowledge base. ctx bounds the wait for queue space.
func CreateBuildJob(ctx context.Context, newJob newJobData) (jobModel.Job, error) {
	log := logJH.With("traceId", newJob.traceId, "jobId", newJob.id, "kbId", newJob.kbId)

	buildJob := jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		JobType:     jobModel.JobTypeBuild,
		CreatedTime: time.Now(),
		CurrentStep: jobModel.BuildInit,
		JobPayload:  jobModel.JobPayload{KnowledgeBaseId: newJob.kbId},
	}
	ctx = context.WithValue(ctx, config.TRACE_ID_KEY, newJob.traceId)
	if err := handlerInstance.service.Enqueue(ctx, buildJob); err != nil {
		log.Error("Could not queue build job", "error", err)
		return buildJob, err
	}
	log.Info("Build job queued", "accepted", handlerInstance.service.Enqueued())
	return buildJob, nil
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.Status(ctxC, id)
	}
	return result, false
}
