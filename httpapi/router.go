// Package httpapi monta as rotas HTTP do serviço: health/info, readiness,
// a rota limitada por janela fixa, o cache-aside e as métricas.
package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssgreg/logf"

	"api-demo/cacheaside"
	"api-demo/kv"
	"api-demo/middleware/ratelimit"
)

type RouterOptions struct {
	Logger *logf.Logger
	Store  kv.Store

	// RateLimit é aplicado apenas em /limited.
	RateLimit ratelimit.Options

	// Burst e Concurrency protegem só as rotas que usam o store; health, ready e
	// metrics ficam fora para não oscilar sob carga. nil desativa.
	Burst       *ratelimit.BurstOptions
	Concurrency *ratelimit.ConcurrencyOptions

	Cache        cacheaside.Runner
	SlowKey      string
	ReportKey    string
	SlowTTL      time.Duration
	ComputeDelay time.Duration

	// Gatherer exposto em /metrics; nil omite a rota.
	Gatherer prometheus.Gatherer

	Hostname func() (string, error)
}

func NewRouter(opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logf.NewDisabledLogger()
	}
	if opts.Hostname == nil {
		opts.Hostname = os.Hostname
	}
	h := &handlers{
		store:        opts.Store,
		cache:        opts.Cache,
		slowKey:      opts.SlowKey,
		reportKey:    opts.ReportKey,
		slowTTL:      opts.SlowTTL,
		computeDelay: opts.ComputeDelay,
		hostname:     opts.Hostname,
	}

	r := chi.NewRouter()
	r.Use(RequestID, Logging(opts.Logger), Recovery)
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", h.health)
	r.Get("/info", h.info)
	r.Get("/ready", h.ready)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if opts.Burst != nil {
			r.Use(ratelimit.BurstMiddleware(*opts.Burst))
		}
		if opts.Concurrency != nil {
			r.Use(ratelimit.ConcurrencyMiddleware(*opts.Concurrency))
		}
		r.With(ratelimit.Middleware(opts.RateLimit)).Get("/limited", h.limited)
		r.Get("/slow/cached", h.slowCached)
		r.Get("/slow/report", h.slowReport)
		r.Get("/cache-test", h.cacheTest)
		r.Get("/counter", h.counter)
	})
	return r
}
