// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_routing_decisions_total",
			Help: "Routing decisions by chosen source and decision method",
		},
		[]string{"source", "method"},
	)

	ModelAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_model_attempts_total",
			Help: "Model invocations by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_fetch_duration_seconds",
			Help:    "Source fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SourceFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_fallbacks_total",
			Help: "Source fallbacks after a backend failure",
		},
		[]string{"from", "to"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_fetch_cache_lookups_total",
			Help: "Fetch cache lookups by result",
		},
		[]string{"result"},
	)
)
