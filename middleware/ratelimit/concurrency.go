package ratelimit

import (
	"net/http"
	"time"

	"github.com/ssgreg/logf"

	"api-demo/logging"
	"api-demo/middleware/ratelimit/application"
	"api-demo/middleware/ratelimit/infra"
	"api-demo/restapi"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Metrics        *PrometheusMetrics
}

// ConcurrencyMiddleware limita requisições em voo. Max <= 0 desativa.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				opts.Metrics.reject("concurrency")
				logging.FromContext(r.Context()).Warn("concurrency limit reached", logf.Error(err))
				restapi.RespondError(w, opts.RejectStatus, http.StatusText(opts.RejectStatus), nil, nil)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
