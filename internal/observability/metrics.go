// Package observability provides Prometheus metrics, OpenTelemetry tracing,
// and structured logging for the sync core.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds all Prometheus metrics for the sync core.
type MetricsCollector struct {
	// Backend request metrics
	BackendRequestsTotal    *prometheus.CounterVec
	BackendRequestDuration  *prometheus.HistogramVec
	BackendRequestsInFlight *prometheus.GaugeVec
	BackendErrors           *prometheus.CounterVec

	// Ingestion metrics
	IngestionOperations  *prometheus.CounterVec
	IngestionDuration    *prometheus.HistogramVec
	IngestedFilesTotal   prometheus.Counter
	IngestedChunksTotal  prometheus.Counter
	IngestionErrorsTotal *prometheus.CounterVec

	// Merkle sync metrics
	MerkleSyncDuration *prometheus.HistogramVec
	MerkleChangesTotal *prometheus.CounterVec

	// Chat metrics
	ChatRequests *prometheus.CounterVec
	ChatDuration *prometheus.HistogramVec
	ChatErrors   *prometheus.CounterVec

	// System metrics
	SystemStartTime prometheus.Gauge
	SystemHealth    *prometheus.GaugeVec
}

// NewMetricsCollector creates and registers all Prometheus metrics.
func NewMetricsCollector(namespace string) *MetricsCollector {
	return NewMetricsCollectorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates metrics with a specific registry (for testing).
func NewMetricsCollectorWithRegistry(namespace string, reg prometheus.Registerer) *MetricsCollector {
	if namespace == "" {
		namespace = "synccore"
	}

	autoCounterVec := func(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
		return promauto.With(reg).NewCounterVec(opts, labelNames)
	}

	autoHistogramVec := func(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
		return promauto.With(reg).NewHistogramVec(opts, labelNames)
	}

	autoGaugeVec := func(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
		return promauto.With(reg).NewGaugeVec(opts, labelNames)
	}

	autoCounter := func(opts prometheus.CounterOpts) prometheus.Counter {
		return promauto.With(reg).NewCounter(opts)
	}

	autoGauge := func(opts prometheus.GaugeOpts) prometheus.Gauge {
		return promauto.With(reg).NewGauge(opts)
	}

	return &MetricsCollector{
		BackendRequestsTotal: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Total number of backend HTTP requests by path and status",
			},
			[]string{"path", "status"},
		),
		BackendRequestDuration: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Backend HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"path"},
		),
		BackendRequestsInFlight: autoGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_requests_in_flight",
				Help:      "Number of backend requests currently in flight",
			},
			[]string{"path"},
		),
		BackendErrors: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_errors_total",
				Help:      "Total number of backend request errors by path and error type",
			},
			[]string{"path", "error_type"},
		),

		IngestionOperations: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_operations_total",
				Help:      "Total number of ingestion state-machine operations by type and status",
			},
			[]string{"operation", "status"},
		),
		IngestionDuration: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_operation_duration_seconds",
				Help:      "Ingestion operation duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		IngestedFilesTotal: autoCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_files_total",
				Help:      "Total number of files uploaded during ingestion",
			},
		),
		IngestedChunksTotal: autoCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_chunks_total",
				Help:      "Total number of chunks reported processed by the backend",
			},
		),
		IngestionErrorsTotal: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_errors_total",
				Help:      "Total number of ingestion errors by type",
			},
			[]string{"error_type"},
		),

		MerkleSyncDuration: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "merkle_sync_duration_seconds",
				Help:      "Two-phase merkle-sync round duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"phase"},
		),
		MerkleChangesTotal: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merkle_changes_total",
				Help:      "Total number of file changes detected by merkle-sync by change type",
			},
			[]string{"change_type"},
		),

		ChatRequests: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_requests_total",
				Help:      "Total number of chat requests by mode and status",
			},
			[]string{"mode", "status"},
		),
		ChatDuration: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chat_request_duration_seconds",
				Help:      "Chat request duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"mode"},
		),
		ChatErrors: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_errors_total",
				Help:      "Total number of chat errors by error type",
			},
			[]string{"error_type"},
		),

		SystemStartTime: autoGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_start_time_seconds",
				Help:      "Unix timestamp when the system started",
			},
		),
		SystemHealth: autoGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_health_status",
				Help:      "System health status (1 = healthy, 0 = unhealthy)",
			},
			[]string{"component"},
		),
	}
}

// RecordBackendRequest records metrics for a backend HTTP request.
func (m *MetricsCollector) RecordBackendRequest(path, status string, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(path, status).Inc()
	m.BackendRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordBackendError records a backend request error.
func (m *MetricsCollector) RecordBackendError(path, errorType string) {
	m.BackendErrors.WithLabelValues(path, errorType).Inc()
}

// TrackBackendInFlight tracks in-flight backend requests.
func (m *MetricsCollector) TrackBackendInFlight(path string, delta float64) {
	m.BackendRequestsInFlight.WithLabelValues(path).Add(delta)
}

// RecordIngestionOperation records metrics for an ingestion state-machine step.
func (m *MetricsCollector) RecordIngestionOperation(operation, status string, duration time.Duration) {
	m.IngestionOperations.WithLabelValues(operation, status).Inc()
	m.IngestionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordIngestedFiles increments the ingested files counter.
func (m *MetricsCollector) RecordIngestedFiles(count int) {
	m.IngestedFilesTotal.Add(float64(count))
}

// RecordIngestedChunks increments the ingested chunks counter.
func (m *MetricsCollector) RecordIngestedChunks(count int) {
	m.IngestedChunksTotal.Add(float64(count))
}

// RecordIngestionError records an ingestion error.
func (m *MetricsCollector) RecordIngestionError(errorType string) {
	m.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordMerkleSync records the duration of one merkle-sync phase and the
// change counts it produced.
func (m *MetricsCollector) RecordMerkleSync(phase string, duration time.Duration, added, modified, deleted int) {
	m.MerkleSyncDuration.WithLabelValues(phase).Observe(duration.Seconds())
	m.MerkleChangesTotal.WithLabelValues("added").Add(float64(added))
	m.MerkleChangesTotal.WithLabelValues("modified").Add(float64(modified))
	m.MerkleChangesTotal.WithLabelValues("deleted").Add(float64(deleted))
}

// RecordChatRequest records metrics for a chat send or send-stream call.
func (m *MetricsCollector) RecordChatRequest(mode, status string, duration time.Duration) {
	m.ChatRequests.WithLabelValues(mode, status).Inc()
	m.ChatDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordChatError records a chat error.
func (m *MetricsCollector) RecordChatError(errorType string) {
	m.ChatErrors.WithLabelValues(errorType).Inc()
}

// SetSystemStartTime sets the system start time.
func (m *MetricsCollector) SetSystemStartTime(startTime time.Time) {
	m.SystemStartTime.Set(float64(startTime.Unix()))
}

// SetComponentHealth sets the health status of a component.
func (m *MetricsCollector) SetComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.SystemHealth.WithLabelValues(component).Set(value)
}
