package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "synapse_batch"

var (
	JobsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_received_total",
			Help:      "Transaction jobs consumed from the queue.",
		},
		[]string{"result"}, // accepted, duplicate, invalid
	)

	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_processed_total",
			Help:      "Batches submitted to the payments API.",
		},
		[]string{"status"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of transactions per submitted batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of requests to the payments API.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "code"},
	)

	QueueWorkerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_worker_restarts_total",
			Help:      "Queue workers restarted after exiting on a live connection.",
		},
	)
)
