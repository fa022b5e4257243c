// Package metrics holds the Prometheus collectors of the payment session client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paysession"

// Recorder groups the collectors. A nil *Recorder records nothing.
type Recorder struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	verdicts *prometheus.CounterVec
	results  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "requests_total",
				Help:      "Total number of Payment API requests by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "request_duration_seconds",
				Help:      "Duration of Payment API requests.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
			},
			[]string{"kind"},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "verdicts_total",
				Help:      "Interaction policy verdicts by origin.",
			},
			[]string{"origin", "verdict"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checkout",
				Name:      "results_total",
				Help:      "Delivered payment results by result code.",
			},
			[]string{"code"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.requests, r.duration, r.verdicts, r.results)
	}
	return r
}

// ObserveRequest records one transport call.
func (r *Recorder) ObserveRequest(kind, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(kind, outcome).Inc()
	r.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveVerdict records one policy decision.
func (r *Recorder) ObserveVerdict(origin, verdict string) {
	if r == nil {
		return
	}
	r.verdicts.WithLabelValues(origin, verdict).Inc()
}

// ObserveResult records one delivered result.
func (r *Recorder) ObserveResult(code string) {
	if r == nil {
		return
	}
	r.results.WithLabelValues(code).Inc()
}

// Handler exposes the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
