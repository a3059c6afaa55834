package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ssgreg/logf"

	"api-demo/logging"
	"api-demo/middleware/ratelimit/application"
	"api-demo/middleware/ratelimit/domain"
	"api-demo/restapi"
)

const (
	MessageTooManyRequests  = "Too many requests"
	MessageStoreUnavailable = "Rate limit store unavailable"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Limiter             application.Service
	Stats               domain.StatsStore
	Metrics             *PrometheusMetrics
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	AddRateLimitHeaders bool
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if ip := strings.TrimSpace(parts[0]); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware aplica o rate limit de janela fixa.
//
//   - permitido: guarda a Decision no contexto (DecisionFromContext) e chama o próximo handler
//   - bloqueado: 429 {"error"} + Retry-After
//   - store indisponível: 500 {"error"}; nunca permite nem bloqueia silenciosamente
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	svc := opts.Limiter

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())
			key := opts.KeyFn(r)

			dec, err := svc.CheckAndRecord(r.Context(), domain.Key(key))
			outcome := domain.OutcomeOf(dec, err)
			opts.Metrics.observe(outcome)
			recordStats(r, opts.Stats, key, outcome)

			if err != nil {
				if errors.Is(err, domain.ErrStoreUnavailable) {
					restapi.RespondError(w, http.StatusInternalServerError, MessageStoreUnavailable, err, logger)
					return
				}
				restapi.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), err, logger)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				logger.Debug("rate limit exceeded", logf.String("client", key), logf.Int64("count", dec.Count))
				restapi.RespondError(w, opts.RejectStatus, MessageTooManyRequests, nil, logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithDecision(r.Context(), dec)))
		})
	}
}

// recordStats é best-effort: falha só gera log.
func recordStats(r *http.Request, stats domain.StatsStore, key string, outcome domain.Outcome) {
	if stats == nil {
		return
	}
	err := stats.Record(r.Context(), domain.StatsEvent{
		Key:     domain.Key(key),
		Outcome: outcome,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to record rate limit stats", logf.Error(err))
	}
}

type ctxKeyDecision struct{}

func NewContextWithDecision(ctx context.Context, dec domain.Decision) context.Context {
	return context.WithValue(ctx, ctxKeyDecision{}, dec)
}

// DecisionFromContext retorna a decisão gravada pelo Middleware, se houver.
func DecisionFromContext(ctx context.Context) (domain.Decision, bool) {
	dec, ok := ctx.Value(ctxKeyDecision{}).(domain.Decision)
	return dec, ok
}

// segundos arredondados para cima, mínimo 1.
func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
