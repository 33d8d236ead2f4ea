// internal/common/metrics/metrics.go
package metrics

import (
	"time"

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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// source: cache|api; outcome: ok|invalid_postcode|transport_error|upstream_error
	PostcodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcode_lookups_total",
			Help: "Total number of postcode lookups by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	PostcodeCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcode_cache_hits_total",
			Help: "Total number of fresh address cache hits",
		},
		[]string{"backend"},
	)

	// reason: absent|stale|error|bypass
	PostcodeCacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcode_cache_misses_total",
			Help: "Total number of address cache misses by reason",
		},
		[]string{"backend", "reason"},
	)

	PostcodeCacheWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postcode_cache_write_failures_total",
			Help: "Total number of swallowed address cache write failures",
		},
		[]string{"backend"},
	)

	PostcodeUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postcode_upstream_request_duration_seconds",
			Help:    "Duration of address service requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"outcome"},
	)
)

func RecordLookup(source, outcome string) {
	PostcodeLookupsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordCacheHit(backend string) {
	PostcodeCacheHitsTotal.WithLabelValues(backend).Inc()
}

func RecordCacheMiss(backend, reason string) {
	PostcodeCacheMissesTotal.WithLabelValues(backend, reason).Inc()
}

func RecordCacheWriteFailure(backend string) {
	PostcodeCacheWriteFailuresTotal.WithLabelValues(backend).Inc()
}

func ObserveUpstream(outcome string, d time.Duration) {
	PostcodeUpstreamDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
