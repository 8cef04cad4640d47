package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/job"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/internal/rag"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

var (
	_jobService        *job.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	nextWorkerId       int64
	logger             *logger_i.Logger
	_ragService        rag.Service
	minWorkerCount     = config.MinWorkerCount
	idleTimeout        = config.IdleWorkerTimeout
)

func InitServices(jobService *job.Service, ragService rag.Service) {
	_jobService = jobService
	_ragService = ragService
	dispatcherChannel = jobService.DispatcherChannel
}

// InitWorkerPool starts the dispatcher with one worker. Each build signal may add a worker up to MaxWorkerCount.
func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool", "max", config.MaxWorkerCount, "min", minWorkerCount)
	go dispatcher()
}

func dispatcher() {
	createWorker()
	for range dispatcherChannel {
		if atomic.LoadInt64(&currentWorkerCount) >= config.MaxWorkerCount {
			logger.Debug("Worker pool at capacity", "workerCount", atomic.LoadInt64(&currentWorkerCount))
			continue
		}
		createWorker()
	}
}

func createWorker() {
	id := atomic.AddInt64(&nextWorkerId, 1)
	workerWaitGroup.Add(1)
	count := atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	logger.Info("Created worker", "workerId", id, "workerCount", count)
	go worker(id)
}

func worker(id int64) {
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()
	for {
		select {
		case currentJob := <-_jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			executeJob(currentJob)
			idle.Reset(idleTimeout)

		case <-stopWorkerChannel:
			atomic.AddInt64(&currentWorkerCount, -1)
			removeWorker(id, "stop signal received")
			return

		case <-idle.C:
			if retireIdle() {
				removeWorker(id, "idle timeout")
				return
			}
			idle.Reset(idleTimeout)
		}
	}
}

// retireIdle claims one slot of the pool for retirement while more than minWorkerCount workers run.
func retireIdle() bool {
	for {
		n := atomic.LoadInt64(&currentWorkerCount)
		if n <= atomic.LoadInt64(&minWorkerCount) {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, n, n-1) {
			return true
		}
	}
}
