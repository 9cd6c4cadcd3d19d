package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_gateway_requests_total",
		Help: "Total number of capability requests",
	}, []string{"capability", "status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assist_gateway_request_latency_seconds",
		Help:    "Capability request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"capability"})

	// Provider metrics
	providerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_gateway_provider_errors_total",
		Help: "Total number of provider errors",
	}, []string{"capability", "kind"})

	capabilityState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "assist_gateway_capability_state",
		Help: "Capability state (0=uninitialized, 1=initializing, 2=ready, 3=failed, 4=disabled)",
	}, []string{"capability"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "assist_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_gateway_audio_bytes_total",
		Help: "Total synthesized audio bytes sent",
	}, []string{"format"}) // format: "wav", "base64", "stream"

	audioCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_gateway_audio_cache_lookups_total",
		Help: "Synthesized audio cache lookups",
	}, []string{"result"}) // result: "hit", "miss", "error"

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assist_gateway_active_streams",
		Help: "Number of open speech streaming sessions",
	})
)

// Metrics tracks a single capability request
type Metrics struct {
	capability string
	startTime  time.Time
}

// NewRequestMetrics starts tracking a request for capability
func NewRequestMetrics(capability string) *Metrics {
	return &Metrics{
		capability: capability,
		startTime:  time.Now(),
	}
}

// RecordEnd records latency and outcome of the request
func (m *Metrics) RecordEnd(success bool) {
	requestLatency.WithLabelValues(m.capability).Observe(time.Since(m.startTime).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	requestsTotal.WithLabelValues(m.capability, status).Inc()
}

// RecordError records a failed provider call by error kind
func (m *Metrics) RecordError(kind string) {
	providerErrors.WithLabelValues(m.capability, kind).Inc()
}

// RecordAudioBytes records audio bytes sent to clients
func RecordAudioBytes(format string, bytes int) {
	audioBytesOut.WithLabelValues(format).Add(float64(bytes))
}

// RecordCacheLookup records an audio cache lookup result
func RecordCacheLookup(result string) {
	audioCacheLookups.WithLabelValues(result).Inc()
}

// StreamOpened increments the active stream gauge
func StreamOpened() { activeStreams.Inc() }

// StreamClosed decrements the active stream gauge
func StreamClosed() { activeStreams.Dec() }

// SetCapabilityState updates the capability lifecycle gauge
func SetCapabilityState(capability string, state int) {
	capabilityState.WithLabelValues(capability).Set(float64(state))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
