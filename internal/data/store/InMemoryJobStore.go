package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

type storedJob struct {
	job     jobModel.Job
	savedAt time.Time
}

// InMemoryJobStore keeps build jobs for a single process, used when redis is disabled.
// Like the redis keys, a job is forgotten once it has not been saved for ttl.
type InMemoryJobStore struct {
	jobMutex sync.RWMutex
	jobMap   map[string]storedJob
	ttl      time.Duration
	now      func() time.Time
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobMap: make(map[string]storedJob),
		ttl:    config.RedisJobStoreTTL,
		now:    time.Now,
	}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	now := store.now()
	store.pruneExpired(now)
	store.jobMap[job.Id] = storedJob{job: job, savedAt: now}
	inMemLogger.FromContext(ctx).Debug("saved job", "jobId", job.Id, "status", job.Status, "step", job.CurrentStep)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	store.jobMutex.RLock()
	defer store.jobMutex.RUnlock()
	stored, found := store.jobMap[jobId]
	if !found || store.expired(stored, store.now()) {
		return jobModel.Job{}, false
	}
	return stored.job, true
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.jobMap, jobID)
}

func (store *InMemoryJobStore) expired(s storedJob, now time.Time) bool {
	return now.Sub(s.savedAt) > store.ttl
}

// pruneExpired must be called with the write lock held.
func (store *InMemoryJobStore) pruneExpired(now time.Time) {
	for id, s := range store.jobMap {
		if store.expired(s, now) {
			delete(store.jobMap, id)
		}
	}
}
