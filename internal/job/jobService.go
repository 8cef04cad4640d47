package job

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

// ErrQueueFull is returned when the queue did not accept a build before the caller gave up.
var ErrQueueFull = errors.New("build queue is full")

// Service is the build queue shared by the build handler and the worker pool.
type Service struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore

	enqueued atomic.Int64
}

func NewService(store jobModel.JobStore, capacity int) *Service {
	return &Service{
		JobChannel:        make(chan jobModel.Job, capacity),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          store,
	}
}

// Enqueue saves the job as queued before handing it to the workers, so a status poll
// never misses it. The send blocks while the buffer is full, bounded by ctx.
func (s *Service) Enqueue(ctx context.Context, j jobModel.Job) error {
	log := logger_i.NewLogger("JobQueue").FromContext(ctx).With("jobId", j.Id)
	j.Status = jobModel.JobStatusQueued
	if err := s.JobStore.SaveJob(ctx, j); err != nil {
		return fmt.Errorf("save queued job %s: %w", j.Id, err)
	}

	select {
	case s.JobChannel <- j:
	case <-ctx.Done():
		j = j.Fail(503, ErrQueueFull.Error(), true)
		j.EndTime = time.Now()
		if err := s.JobStore.SaveJob(context.WithoutCancel(ctx), j); err != nil {
			log.Error("could not record rejected job", "error", err)
		}
		return ErrQueueFull
	}
	metrics.IncrementJobsInQueue()
	s.enqueued.Add(1)

	//a build parses and embeds a whole document set, so every build asks the dispatcher for a worker
	select {
	case s.DispatcherChannel <- true:
		metrics.StartDispatcherSignalCount()
	default:
		log.Debug("Dispatcher busy, job stays queued for the running workers")
	}
	return nil
}

// Enqueued counts the builds accepted since start.
func (s *Service) Enqueued() int64 {
	return s.enqueued.Load()
}

func (s *Service) Status(ctx context.Context, id string) (jobModel.Job, bool) {
	return s.JobStore.GetJob(ctx, id)
}
