package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassifierRequests counts classification attempts by outcome
	ClassifierRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grader_classifier_requests_total",
			Help: "Total number of classification API attempts",
		},
		[]string{"outcome"},
	)

	// ClassifierRetries counts rate-limit retries
	ClassifierRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grader_classifier_retries_total",
			Help: "Total number of retries after HTTP 429",
		},
	)

	// ClassifierLatency tracks classification API latency per attempt
	ClassifierLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grader_classifier_latency_seconds",
			Help:    "Classification API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RowsGraded counts graded rows by outcome (graded, error)
	RowsGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grader_rows_total",
			Help: "Total number of rows that reached a terminal outcome",
		},
		[]string{"outcome"},
	)

	// JobsFinished counts jobs reaching a terminal status
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grader_jobs_finished_total",
			Help: "Total number of grading jobs by terminal status",
		},
		[]string{"status"},
	)

	// JobsRunning tracks jobs currently being graded
	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grader_jobs_running",
			Help: "Number of grading jobs currently running",
		},
	)

	// JobDuration tracks wall time of finished jobs
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grader_job_duration_seconds",
			Help:    "Grading job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// QueueDepth tracks runs waiting for a worker
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grader_queue_depth",
			Help: "Number of grading runs waiting for a worker",
		},
	)
)
