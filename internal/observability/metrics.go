package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	gatewayRequestsTotal   *prometheus.CounterVec
	gatewayLatencySeconds  *prometheus.HistogramVec
	gradingEnqueuedTotal   prometheus.Counter
	gradingPollsTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the grading gateway.
func RegisterMetrics() {
	registerOnce.Do(func() {
		gatewayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_gateway_requests_total",
			Help: "Total number of gateway requests served.",
		}, []string{"method", "route", "status"})

		gatewayLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "copilot_gateway_latency_seconds",
			Help:    "Latency distribution for gateway requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route"})

		gradingEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copilot_grading_tasks_enqueued_total",
			Help: "Total number of grading tasks accepted for processing.",
		})

		gradingPollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_grading_status_polls_total",
			Help: "Status poll requests by reported task status.",
		}, []string{"status"})

		prometheus.MustRegister(gatewayRequestsTotal, gatewayLatencySeconds, gradingEnqueuedTotal, gradingPollsTotal)
	})
}

// GatewayRequests exposes the request counter.
func GatewayRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return gatewayRequestsTotal
}

// GatewayLatency exposes the latency histogram.
func GatewayLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return gatewayLatencySeconds
}

// GradingEnqueued exposes the enqueue counter.
func GradingEnqueued() prometheus.Counter {
	RegisterMetrics()
	return gradingEnqueuedTotal
}

// GradingPolls exposes the status-poll counter.
func GradingPolls() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingPollsTotal
}
