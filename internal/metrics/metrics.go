// Package metrics exposes Prometheus instruments for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brief_gateway"

// Metrics groups the gateway's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	rateLimitedTotal prometheus.Counter
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Brief requests by request type and response status.",
			},
			[]string{"type", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Completion call latency by outcome.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the per-client rate limit.",
			},
		),
	}
	reg.MustRegister(m.requestsTotal, m.upstreamDuration, m.rateLimitedTotal)
	return m
}

// ObserveRequest counts one finished request. An empty type is recorded as
// "none" for requests rejected before the body was read.
func (m *Metrics) ObserveRequest(requestType string, status int) {
	if m == nil {
		return
	}
	if requestType == "" {
		requestType = "none"
	}
	m.requestsTotal.WithLabelValues(requestType, strconv.Itoa(status)).Inc()
}

// ObserveUpstream records the latency of one completion call.
func (m *Metrics) ObserveUpstream(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.upstreamDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RateLimited counts one throttled request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
