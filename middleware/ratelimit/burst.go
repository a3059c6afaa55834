package ratelimit

import (
	"context"
	"net/http"

	"github.com/ssgreg/logf"

	"api-demo/logging"
	"api-demo/middleware/ratelimit/application"
	"api-demo/middleware/ratelimit/domain"
	"api-demo/restapi"
)

// BurstOptions configura o guarda de rajadas (token bucket local por cliente).
type BurstOptions struct {
	// Limiter.Prefix deve ser o mesmo do Options.Limiter da janela fixa.
	Limiter             application.BurstService
	Stats               domain.StatsStore
	Metrics             *PrometheusMetrics
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	AddRateLimitHeaders bool
}

// BurstMiddleware corta rajadas antes de chegar ao store compartilhado.
//
//   - negado: 429 {"error"} + Retry-After (espera até o próximo token), registrado
//     como domain.OutcomeBurstDenied em stats e métricas
//   - permitido: guarda a Decision do bucket no contexto (BurstDecisionFromContext)
//
// Limiter.Store nil desativa o guarda.
func BurstMiddleware(opts BurstOptions) func(next http.Handler) http.Handler {
	if opts.Limiter.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	svc := opts.Limiter

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())
			key := opts.KeyFn(r)

			dec, err := svc.Check(domain.Key(key))
			if err != nil {
				restapi.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), err, logger)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-Burst-Limit", formatInt(dec.Limit))
				w.Header().Set("X-Burst-Remaining", formatInt(dec.Remaining))
			}

			if !dec.Allowed {
				opts.Metrics.observe(domain.OutcomeBurstDenied)
				recordStats(r, opts.Stats, key, domain.OutcomeBurstDenied)
				logger.Debug("burst guard rejected request", logf.String("client", key))
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				restapi.RespondError(w, http.StatusTooManyRequests, MessageTooManyRequests, nil, logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithBurstDecision(r.Context(), dec)))
		})
	}
}

type ctxKeyBurstDecision struct{}

func NewContextWithBurstDecision(ctx context.Context, dec domain.Decision) context.Context {
	return context.WithValue(ctx, ctxKeyBurstDecision{}, dec)
}

// BurstDecisionFromContext retorna a decisão do guarda de rajadas, se ele estiver ativo.
func BurstDecisionFromContext(ctx context.Context) (domain.Decision, bool) {
	dec, ok := ctx.Value(ctxKeyBurstDecision{}).(domain.Decision)
	return dec, ok
}
