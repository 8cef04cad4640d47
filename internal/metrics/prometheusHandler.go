package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenderrag"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Requests served, labelled by route pattern and status code.",
	}, []string{"route", "status"})

	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_total",
		Help:      "Answers returned, labelled by outcome (answered, degraded, no_context).",
	}, []string{"outcome"})

	dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dependency_latency_seconds",
		Help:      "Latency of embedding, generation and vector store calls.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
	}, []string{"service"})
)

// index build pipeline
var (
	buildDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "build",
		Name:      "documents_total",
		Help:      "Documents processed by index builds, labelled by outcome.",
	}, []string{"outcome"})

	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "build",
		Name:      "job_duration_seconds",
		Help:      "Wall time of an index build job, labelled by final status.",
		Buckets:   []float64{.5, 1, 5, 15, 30, 60, 180, 600},
	}, []string{"status"})

	embeddingRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "build",
		Name:      "embedding_retries_total",
		Help:      "Embedding batch attempts retried after a transient failure.",
	})

	jobsQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "build",
		Name:      "jobs_queued",
		Help:      "Build jobs waiting for a worker.",
	})

	dispatcherSignalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "build",
		Name:      "dispatcher_signals_total",
		Help:      "Signals sent to the dispatcher to start a worker.",
	})

	workersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "build",
		Name:      "workers_active",
		Help:      "Build workers currently alive.",
	})
)

// HttpStatusRecorder remembers the status a handler wrote.
type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

// CountRequest expects a route pattern, not the raw path, so that kb ids stay out of the label set.
func CountRequest(route string, status int) {
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func CountAnswer(outcome string) {
	answersTotal.WithLabelValues(outcome).Inc()
}

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(status string, timeElapsed time.Duration) {
	buildDuration.WithLabelValues(status).Observe(timeElapsed.Seconds())
}

func CountBuildDocument(outcome string) {
	buildDocumentsTotal.WithLabelValues(outcome).Inc()
}

func IncrementEmbeddingRetries() {
	embeddingRetriesTotal.Inc()
}

func IncrementJobsInQueue() {
	jobsQueued.Inc()
}

func DecrementJobsInQueue() {
	jobsQueued.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalsTotal.Inc()
}

func IncrementActiveWorkerCount() {
	workersActive.Inc()
}

func DecrementActiveWorkerCount() {
	workersActive.Dec()
}
