package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments HTTP handlers with request counts, durations and the
// number of in-flight requests.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics registers the HTTP collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analysis",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by handler, method and status code.",
		}, []string{"handler", "code", "method"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "analysis",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies by handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "code", "method"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "analysis",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
}

// Instrument wraps next, labelling its series with name.
func (m *Metrics) Instrument(name string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerInFlight(m.inFlight,
		promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), next)))
}
