// Package metrics provides Prometheus metrics for the Meraki graph collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meraki_graph"

var (
	// RunsTotal tracks collection runs by status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_total",
			Help:      "Total number of collection runs by status",
		},
		[]string{"status"},
	)

	// RunDuration tracks collection run duration in seconds
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "run_duration_seconds",
			Help:      "Duration of collection runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// StepsTotal tracks step executions by step and status
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "steps_total",
			Help:      "Total number of step executions by status",
		},
		[]string{"step_id", "status"},
	)

	// StepDuration tracks step duration in seconds
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "step_duration_seconds",
			Help:      "Duration of step executions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"step_id"},
	)

	// RegisteredItems tracks entities and relationships registered per run
	RegisteredItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobstate",
			Name:      "registered_total",
			Help:      "Total number of registered entities and relationships",
		},
		[]string{"kind"},
	)

	// HTTPRequestsTotal tracks dashboard API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of dashboard API requests",
		},
		[]string{"operation", "status_code"},
	)

	// HTTPRequestDuration tracks dashboard API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of dashboard API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// HTTPServerRequestsTotal tracks requests served by the API
	HTTPServerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_server",
			Name:      "requests_total",
			Help:      "Total number of API requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPServerRequestDuration tracks API request duration
	HTTPServerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http_server",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// GraphWritesTotal tracks graph database batch writes
	GraphWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "writes_total",
			Help:      "Total number of graph batch writes",
		},
		[]string{"kind", "status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// RunLockContention tracks runs rejected because another run holds the lock
	RunLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "lock_contention_total",
			Help:      "Total number of runs rejected because the run lock was held",
		},
	)
)

// RecordRun records a finished collection run
func RecordRun(status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordStep records a finished step
func RecordStep(stepID, status string, durationSeconds float64) {
	StepsTotal.WithLabelValues(stepID, status).Inc()
	StepDuration.WithLabelValues(stepID).Observe(durationSeconds)
}

// RecordRegistered records the entities and relationships a run registered
func RecordRegistered(entities, relationships int) {
	RegisteredItems.WithLabelValues("entity").Add(float64(entities))
	RegisteredItems.WithLabelValues("relationship").Add(float64(relationships))
}

// RecordHTTPRequest records a dashboard API request
func RecordHTTPRequest(operation, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(operation, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordGraphWrite records a graph batch write
func RecordGraphWrite(kind, status string) {
	GraphWritesTotal.WithLabelValues(kind, status).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordHTTPServerRequest records a request served by the API
func RecordHTTPServerRequest(method, route, statusCode string, durationSeconds float64) {
	HTTPServerRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPServerRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordDatabaseQuery records a run history query
func RecordDatabaseQuery(operation string, durationSeconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
}
