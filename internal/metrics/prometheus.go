package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the collector
var (
	// Collection cycle metrics
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsflux_cycles_total",
			Help: "Total number of collection cycles",
		},
		[]string{"status"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vsflux_cycle_duration_seconds",
			Help:    "Collection cycle duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300}, // 1s to 5m
		},
	)

	lastCycleEmitted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vsflux_last_cycle_emitted_entities",
			Help: "Number of entities emitted by the last successful cycle",
		},
	)

	lastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vsflux_last_success_timestamp_seconds",
			Help: "Unix time of the last successful collection cycle",
		},
	)

	// Entity metrics
	entitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsflux_entities_total",
			Help: "Total number of entities processed by outcome",
		},
		[]string{"kind", "outcome"},
	)

	untrustedAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsflux_untrusted_attempts_total",
			Help: "Total number of attempts discarded as untrusted",
		},
		[]string{"kind"},
	)

	// Counter fetch metrics
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vsflux_fetch_duration_seconds",
			Help:    "Duration of realtime counter fetches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}, // 50ms to 5s
		},
		[]string{"kind"},
	)

	fetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsflux_fetch_errors_total",
			Help: "Total number of failed counter fetches",
		},
		[]string{"kind"},
	)

	skippedSamplesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsflux_skipped_samples_total",
			Help: "Total number of samples skipped as invalid",
		},
	)

	// Transport metrics
	emittedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsflux_emitted_bytes_total",
			Help: "Total bytes of line protocol handed to the sink",
		},
	)

	transportErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsflux_transport_errors_total",
			Help: "Total number of failed record writes",
		},
	)

	// Status server metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsflux_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vsflux_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// WebSocket metrics
	websocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vsflux_websocket_connections_active",
			Help: "Number of active line stream WebSocket connections",
		},
	)
)

// RecordCycle records a finished collection cycle
func RecordCycle(duration time.Duration, hasError bool) {
	status := "success"
	if hasError {
		status = "error"
	}
	cyclesTotal.With(prometheus.Labels{"status": status}).Inc()
	cycleDuration.Observe(duration.Seconds())
}

// UpdateLastCycle updates the gauges describing the last successful cycle
func UpdateLastCycle(emitted int, finished time.Time) {
	lastCycleEmitted.Set(float64(emitted))
	lastSuccessTimestamp.Set(float64(finished.Unix()))
}

// RecordEntity records the final outcome of one entity
func RecordEntity(kind, outcome string) {
	entitiesTotal.With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}

// RecordUntrustedAttempt records an attempt discarded by the trust heuristic
func RecordUntrustedAttempt(kind string) {
	untrustedAttemptsTotal.With(prometheus.Labels{"kind": kind}).Inc()
}

// RecordFetch records a counter fetch
func RecordFetch(kind string, duration time.Duration, hasError bool) {
	fetchDuration.With(prometheus.Labels{"kind": kind}).Observe(duration.Seconds())

	if hasError {
		fetchErrorsTotal.With(prometheus.Labels{"kind": kind}).Inc()
	}
}

// RecordSkippedSamples records samples dropped as invalid
func RecordSkippedSamples(count int) {
	skippedSamplesTotal.Add(float64(count))
}

// RecordEmitted records a record handed to the sink
func RecordEmitted(bytes int) {
	emittedBytesTotal.Add(float64(bytes))
}

// RecordTransportError records a failed record write
func RecordTransportError() {
	transportErrorsTotal.Inc()
}

// RecordHTTPRequest records metrics for HTTP requests
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	labels := prometheus.Labels{
		"method":      method,
		"path":        path,
		"status_code": strconv.Itoa(statusCode),
	}

	httpRequestsTotal.With(labels).Inc()
	httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// RecordWebSocketConnection records a new stream connection
func RecordWebSocketConnection() {
	websocketConnectionsActive.Inc()
}

// RecordWebSocketDisconnection records a closed stream connection
func RecordWebSocketDisconnection() {
	websocketConnectionsActive.Dec()
}
