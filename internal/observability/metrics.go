// Package observability exposes resolver activity as Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatbridge/internal/core"
)

const namespace = "chatbridge"

// PrometheusHooks records upstream attempts and resolution results.
// It satisfies resolver.Hooks.
type PrometheusHooks struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	resolutions     *prometheus.CounterVec
}

// NewPrometheusHooks registers the collectors with reg. A nil reg uses the default registerer.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusHooks{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream generateContent attempts by candidate and outcome.",
		}, []string{"api_version", "model", "outcome"}),
		attemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_attempt_duration_seconds",
			Help:      "Duration of upstream generateContent attempts.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"api_version", "model"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Chat resolutions by final result.",
		}, []string{"result"}),
	}
}

// OnAttempt records one candidate attempt.
func (h *PrometheusHooks) OnAttempt(c core.Candidate, outcome string, d time.Duration) {
	h.attempts.WithLabelValues(string(c.APIVersion), c.Model, outcome).Inc()
	h.attemptDuration.WithLabelValues(string(c.APIVersion), c.Model).Observe(d.Seconds())
}

// OnResolution records the final result of a Resolve call.
func (h *PrometheusHooks) OnResolution(result string) {
	h.resolutions.WithLabelValues(result).Inc()
}
