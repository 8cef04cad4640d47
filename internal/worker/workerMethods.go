package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	jobmodel "github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/akolanti/TenderRAG/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		// Record total time at the end
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.BuildJobTimeout)
	defer cancel()
	log := logger.FromContext(ctx).With("jobId", job.Id, "kbId", job.JobPayload.KnowledgeBaseId)
	log.Debug("Processing job")

	job.CurrentStep = jobmodel.BuildInit
	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	if job.JobType == jobmodel.JobTypeBuild {
		job = _ragService.BuildIndex(ctx, job)
	} else {
		log.Error("Unknown job type", "jobType", job.JobType)
		job = job.Fail(400, "unknown job type", false)
	}

	job.EndTime = time.Now()
	status := jobmodel.JobStatusComplete
	if job.Status == jobmodel.JobStatusError {
		status = jobmodel.JobStatusError
	}
	// the build may have used up the job deadline, the final state must still land
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer saveCancel()
	saveJobState(saveCtx, job, status)
}

// removeWorker runs after the worker count was already decremented.
func removeWorker(id int64, reason string) {
	workerWaitGroup.Done()
	metrics.DecrementActiveWorkerCount()
	logger.Info("Removed worker", "workerId", id, "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.FromContext(ctx).Error("Failed to save job state", "jobId", job.Id, "status", jobStatus, "error", err)
	}
}
