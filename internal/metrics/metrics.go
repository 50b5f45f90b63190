package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRunsTotal counts finished job runs by outcome (success, failure, skipped)
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esched_job_runs_total",
			Help: "Total number of job runs",
		},
		[]string{"job", "result"},
	)

	// JobDuration tracks how long each job run takes
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esched_job_duration_seconds",
			Help:    "Job run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	// JobLastSuccess is the unix time of the last successful run
	JobLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "esched_job_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful run",
		},
		[]string{"job"},
	)

	// RetryAttemptsTotal counts attempts made under the retry policy
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esched_retry_attempts_total",
			Help: "Total number of attempts made under a retry policy",
		},
		[]string{"operation", "outcome"},
	)

	// RetryExhaustedTotal counts operations that ran out of attempts
	RetryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esched_retry_exhausted_total",
			Help: "Total number of operations that exhausted their retries",
		},
		[]string{"operation"},
	)

	// HTTPRequestsTotal counts outbound requests by host and status class
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esched_http_requests_total",
			Help: "Total number of outbound HTTP requests",
		},
		[]string{"method", "host", "status"},
	)

	// HTTPLatency tracks outbound request latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esched_http_request_duration_seconds",
			Help:    "Outbound HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "host"},
	)

	// BucketNodes is the node count per bucket after the last refresh
	BucketNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "esched_bucket_nodes",
			Help: "Number of classified nodes per bucket in the last refresh",
		},
		[]string{"bucket"},
	)

	// UnrecognizedNodesTotal counts labels no classification rule matched
	UnrecognizedNodesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "esched_unrecognized_nodes_total",
			Help: "Total number of nodes skipped because no region matched",
		},
	)

	// AlertsTotal counts alert deliveries by outcome
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esched_alerts_total",
			Help: "Total number of failure alerts",
		},
		[]string{"result"},
	)
)
