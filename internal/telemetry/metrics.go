package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec

	// MCP-specific metrics
	MCPSessionsActive  prometheus.Gauge
	MCPSessionsTotal   *prometheus.CounterVec
	MCPSessionDuration prometheus.Histogram
	MCPToolExecutions  *prometheus.CounterVec
	MCPToolDuration    *prometheus.HistogramVec

	// Configuration
	ArithmeticPrecision prometheus.Gauge
	ConfigDegradations  *prometheus.CounterVec

	// System metrics
	GoRoutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "Size of HTTP responses in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		MCPSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mcp_sessions_active",
				Help: "Number of active MCP sessions",
			},
		),
		MCPSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_sessions_total",
				Help: "Total number of MCP session lifecycle events",
			},
			[]string{"action"}, // created, deleted, expired
		),
		MCPSessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mcp_session_duration_seconds",
				Help:    "Lifetime of MCP sessions closed by the client, in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200},
			},
		),
		MCPToolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_tool_executions_total",
				Help: "Total number of MCP tool executions",
			},
			[]string{"tool_name", "status"}, // success, error
		),
		MCPToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcp_tool_execution_duration_seconds",
				Help:    "Duration of MCP tool executions in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"tool_name"},
		),

		ArithmeticPrecision: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arithmetic_precision_digits",
				Help: "Fractional digits kept by the add and subtract tools",
			},
		),
		ConfigDegradations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "config_degradations_total",
				Help: "Settings that fell back to their default at startup",
			},
			[]string{"setting"},
		),

		GoRoutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "go_goroutines_current",
				Help: "Number of goroutines that currently exist",
			},
		),
		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),
	}
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

func (m *Metrics) RecordSessionCreated() {
	m.MCPSessionsActive.Inc()
	m.MCPSessionsTotal.WithLabelValues("created").Inc()
}

func (m *Metrics) RecordSessionDeleted(duration time.Duration) {
	m.MCPSessionsActive.Dec()
	m.MCPSessionsTotal.WithLabelValues("deleted").Inc()
	m.MCPSessionDuration.Observe(duration.Seconds())
}

// RecordSessionsExpired records n sessions removed for inactivity.
func (m *Metrics) RecordSessionsExpired(n int) {
	if n <= 0 {
		return
	}
	m.MCPSessionsActive.Sub(float64(n))
	m.MCPSessionsTotal.WithLabelValues("expired").Add(float64(n))
}

// RecordToolExecution records a tool execution
func (m *Metrics) RecordToolExecution(toolName, status string, duration time.Duration) {
	m.MCPToolExecutions.WithLabelValues(toolName, status).Inc()
	m.MCPToolDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// SetPrecision publishes the resolved arithmetic precision.
func (m *Metrics) SetPrecision(digits int) {
	m.ArithmeticPrecision.Set(float64(digits))
}

// RecordConfigDegradation counts a setting that fell back to its default.
func (m *Metrics) RecordConfigDegradation(setting string) {
	m.ConfigDegradations.WithLabelValues(setting).Inc()
}

// UpdateSystemMetrics updates system-level metrics
func (m *Metrics) UpdateSystemMetrics(goroutines int, memoryBytes uint64) {
	m.GoRoutines.Set(float64(goroutines))
	m.MemoryUsage.Set(float64(memoryBytes))
}
