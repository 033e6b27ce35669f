package panel

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// clientMetrics holds the opt-in instrumentation enabled by WithMetrics.
// Collectors are registered on the caller's registry, never the global one.
type clientMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	notModified prometheus.Counter
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	f := promauto.With(reg)
	return &clientMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_client_requests_total",
			Help: "Panel API requests by operation and response status.",
		}, []string{"operation", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "panel_client_request_duration_seconds",
			Help:    "Panel API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		notModified: f.NewCounter(prometheus.CounterOpts{
			Name: "panel_client_not_modified_total",
			Help: "Conditional user-list requests answered 304 Not Modified.",
		}),
	}
}

// observe records one completed round trip. status is 0 when the request
// failed before an HTTP response.
func (m *clientMetrics) observe(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(op, label).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
	if status == 304 {
		m.notModified.Inc()
	}
}
