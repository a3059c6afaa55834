package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"

	"api-demo/middleware/ratelimit/domain"
)

// PrometheusMetrics conta as decisões de rate limit por resultado.
type PrometheusMetrics struct {
	Decisions *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
}

type PrometheusMetricsOpts struct {
	Namespace   string
	ConstLabels prometheus.Labels
}

func NewPrometheusMetrics(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "rate_limit_decisions_total",
				Help:        "Number of rate limit evaluations by outcome (fixed window and burst guard).",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"outcome"},
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "guard_rejections_total",
				Help:        "Number of requests rejected by the concurrency guard.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"guard"},
		),
	}
}

func (pm *PrometheusMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(pm.Decisions, pm.Rejected)
}

func (pm *PrometheusMetrics) Unregister(reg prometheus.Registerer) {
	reg.Unregister(pm.Decisions)
	reg.Unregister(pm.Rejected)
}

func (pm *PrometheusMetrics) observe(o domain.Outcome) {
	if pm == nil {
		return
	}
	pm.Decisions.WithLabelValues(string(o)).Inc()
}

func (pm *PrometheusMetrics) reject(guard string) {
	if pm == nil {
		return
	}
	pm.Rejected.WithLabelValues(guard).Inc()
}
