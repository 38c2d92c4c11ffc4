// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Upstream metrics
	NotificationsReceived prometheus.Counter
	NotificationsDropped  *prometheus.CounterVec
	FetchRetries          prometheus.Counter
	UpstreamState         *prometheus.GaugeVec

	// Pipeline metrics
	EventsPublished prometheus.Counter
	DecodeFailures  prometheus.Counter
	QueueDepth      prometheus.Gauge
	SignaturesShed  prometheus.Counter

	// Subscriber metrics
	SubscribersConnected prometheus.Gauge
	SessionsLagged       prometheus.Counter
	FramesSent           prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_fun_monitor"
	}

	return &Metrics{
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "notifications_received_total",
			Help:      "Total number of log notifications received",
		}),
		NotificationsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "notifications_dropped_total",
			Help:      "Total number of notifications dropped, by reason",
		}, []string{"reason"}),
		FetchRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_retries_total",
			Help:      "Total number of transaction fetch retries",
		}),
		UpstreamState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "subscription_state",
			Help:      "Current log subscription state (1 for the active state)",
		}, []string{"state"}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_published_total",
			Help:      "Total number of token creation events published",
		}),
		DecodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decode_failures_total",
			Help:      "Total number of create instructions that failed to decode",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "fetch_queue_depth",
			Help:      "Signatures waiting for a fetch worker",
		}),
		SignaturesShed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signatures_shed_total",
			Help:      "Queued signatures shed past the high-water mark",
		}),
		SubscribersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "subscribers_connected",
			Help:      "Currently connected subscriber sessions",
		}),
		SessionsLagged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "sessions_lagged_total",
			Help:      "Sessions closed because they fell behind the ring",
		}),
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "frames_sent_total",
			Help:      "Event frames delivered to subscribers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// upstreamStates enumerates the subscription state machine for the gauge.
var upstreamStates = []string{"disconnected", "connecting", "subscribed", "draining"}

// RecordNotification increments the notifications received counter.
func RecordNotification() {
	DefaultMetrics.NotificationsReceived.Inc()
}

// RecordDrop records a dropped notification or signature by reason.
func RecordDrop(reason string) {
	DefaultMetrics.NotificationsDropped.WithLabelValues(reason).Inc()
}

// RecordFetchRetry increments the fetch retry counter.
func RecordFetchRetry() {
	DefaultMetrics.FetchRetries.Inc()
}

// SetUpstreamState marks the active subscription state so dashboards can
// report time-in-state.
func SetUpstreamState(state string) {
	for _, s := range upstreamStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		DefaultMetrics.UpstreamState.WithLabelValues(s).Set(v)
	}
}

// RecordEventPublished increments the published events counter.
func RecordEventPublished() {
	DefaultMetrics.EventsPublished.Inc()
}

// RecordDecodeFailure increments the decode failure counter.
func RecordDecodeFailure() {
	DefaultMetrics.DecodeFailures.Inc()
}

// SetQueueDepth updates the fetch queue depth gauge.
func SetQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordShed increments the shed signatures counter.
func RecordShed() {
	DefaultMetrics.SignaturesShed.Inc()
}

// SetSubscribers updates the connected subscribers gauge.
func SetSubscribers(n int) {
	DefaultMetrics.SubscribersConnected.Set(float64(n))
}

// RecordSessionLagged increments the lagged sessions counter.
func RecordSessionLagged() {
	DefaultMetrics.SessionsLagged.Inc()
}

// RecordFrameSent increments the delivered frames counter.
func RecordFrameSent() {
	DefaultMetrics.FramesSent.Inc()
}
