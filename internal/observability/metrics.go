package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	requestsTotal          *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	wsConnectionsActive    prometheus.Gauge
	chatMessagesSentTotal  *prometheus.CounterVec
	notificationsPublished *prometheus.CounterVec
	pushFailuresTotal      prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the support API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "support_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		wsConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "support_ws_connections_active",
			Help: "Number of websocket connections currently registered with the gateway.",
		})

		chatMessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_chat_messages_sent_total",
			Help: "Total number of support chat messages persisted, by author role.",
		}, []string{"role"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_notifications_published_total",
			Help: "Total number of notifications created, by type.",
		}, []string{"type"})

		pushFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "support_push_failures_total",
			Help: "Total number of push dispatch attempts that failed entirely.",
		})

		prometheus.MustRegister(
			requestsTotal,
			requestLatencySeconds,
			wsConnectionsActive,
			chatMessagesSentTotal,
			notificationsPublished,
			pushFailuresTotal,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// WSConnectionsActive exposes the gateway connection gauge.
func WSConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return wsConnectionsActive
}

// ChatMessagesSent exposes the per-role message counter.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSentTotal
}

// NotificationsPublished exposes the per-type notification counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// PushFailures exposes the push failure counter.
func PushFailures() prometheus.Counter {
	RegisterMetrics()
	return pushFailuresTotal
}
