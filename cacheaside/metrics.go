package cacheaside

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector coleta métricas de uso do cache-aside.
type MetricsCollector interface {
	IncHits()
	IncMisses()
	// ObserveCompute registra a duração de um cálculo; err != nil conta como falha.
	ObserveCompute(d time.Duration, err error)
}

type disabledMetrics struct{}

func (disabledMetrics) IncHits()                            {}
func (disabledMetrics) IncMisses()                          {}
func (disabledMetrics) ObserveCompute(time.Duration, error) {}

type PrometheusMetricsOpts struct {
	Namespace   string
	ConstLabels prometheus.Labels
}

// PrometheusMetrics implementa MetricsCollector com client_golang.
type PrometheusMetrics struct {
	HitsTotal            prometheus.Counter
	MissesTotal          prometheus.Counter
	ComputeFailuresTotal prometheus.Counter
	ComputeDuration      prometheus.Histogram
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

func NewPrometheusMetrics(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		HitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_aside_hits_total",
			Help:        "Number of lookups answered from the key-value store.",
			ConstLabels: opts.ConstLabels,
		}),
		MissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_aside_misses_total",
			Help:        "Number of lookups that required computing the value.",
			ConstLabels: opts.ConstLabels,
		}),
		ComputeFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_aside_compute_failures_total",
			Help:        "Number of failed or timed out computations (never cached).",
			ConstLabels: opts.ConstLabels,
		}),
		ComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_aside_compute_duration_seconds",
			Help:        "Duration of computations run on cache miss.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			ConstLabels: opts.ConstLabels,
		}),
	}
}

func (pm *PrometheusMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(pm.HitsTotal, pm.MissesTotal, pm.ComputeFailuresTotal, pm.ComputeDuration)
}

func (pm *PrometheusMetrics) Unregister(reg prometheus.Registerer) {
	reg.Unregister(pm.HitsTotal)
	reg.Unregister(pm.MissesTotal)
	reg.Unregister(pm.ComputeFailuresTotal)
	reg.Unregister(pm.ComputeDuration)
}

func (pm *PrometheusMetrics) IncHits()   { pm.HitsTotal.Inc() }
func (pm *PrometheusMetrics) IncMisses() { pm.MissesTotal.Inc() }

func (pm *PrometheusMetrics) ObserveCompute(d time.Duration, err error) {
	pm.ComputeDuration.Observe(d.Seconds())
	if err != nil {
		pm.ComputeFailuresTotal.Inc()
	}
}
