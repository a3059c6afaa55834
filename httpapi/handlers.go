package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ssgreg/logf"

	"api-demo/cacheaside"
	"api-demo/kv"
	"api-demo/logging"
	"api-demo/middleware/ratelimit"
	"api-demo/restapi"
)

const (
	InfoMessage    = "Hello from Dockerized API 👋"
	LimitedMessage = "Request allowed"

	CacheTestKey   = "test_key"
	CacheTestValue = "Hello from the key-value store!"
	CounterKey     = "counter"

	// SlowResult é o valor produzido pelo cálculo lento de /slow/cached.
	SlowResult = "done"

	MessageStoreUnavailable = "Store unavailable"
	MessageComputeFailed    = "Computation failed"
)

type handlers struct {
	store kv.Store
	cache cacheaside.Runner

	slowKey      string
	reportKey    string
	slowTTL      time.Duration
	computeDelay time.Duration

	hostname func() (string, error)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	restapi.RespondJSON(w, map[string]string{"status": "ok"}, logging.FromContext(r.Context()))
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	hostname, err := h.hostname()
	if err != nil {
		logger.Warn("failed to get hostname", logf.Error(err))
		hostname = "unknown"
	}
	restapi.RespondJSON(w, map[string]string{"message": InfoMessage, "hostname": hostname}, logger)
}

type readyResponse struct {
	Components map[string]bool `json:"components"`
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	storeOK := true
	if err := h.store.Ping(r.Context()); err != nil {
		logger.Warn("store is not ready", logf.Error(err))
		storeOK = false
	}
	status := http.StatusOK
	if !storeOK {
		status = http.StatusServiceUnavailable
	}
	restapi.RespondCodeAndJSON(w, status, readyResponse{Components: map[string]bool{"store": storeOK}}, logger)
}

type limitedResponse struct {
	Message           string `json:"message"`
	RemainingRequests int    `json:"remaining_requests"`
}

// limited roda atrás de ratelimit.Middleware, que já decidiu e gravou a Decision.
func (h *handlers) limited(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	dec, ok := ratelimit.DecisionFromContext(r.Context())
	if !ok {
		restapi.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), nil, logger)
		return
	}
	restapi.RespondJSON(w, limitedResponse{Message: LimitedMessage, RemainingRequests: dec.Remaining}, logger)
}

type slowCachedResponse struct {
	Cached bool   `json:"cached"`
	Result string `json:"result"`
}

func (h *handlers) slowCached(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	res, err := h.cache.GetOrCompute(r.Context(), h.slowKey, h.slowTTL, h.slowCompute)
	if err != nil {
		restapi.RespondError(w, http.StatusInternalServerError, cacheErrorMessage(err), err, logger)
		return
	}
	restapi.RespondJSON(w, slowCachedResponse{Cached: res.Cached, Result: res.Value}, logger)
}

func (h *handlers) slowCompute(ctx context.Context) (string, error) {
	if h.computeDelay <= 0 {
		return SlowResult, nil
	}
	t := time.NewTimer(h.computeDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return SlowResult, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SlowReport é o resultado tipado de /slow/report, gravado como JSON no store.
type SlowReport struct {
	Result     string    `json:"result"`
	Hostname   string    `json:"hostname"`
	ComputedAt time.Time `json:"computed_at"`
}

type slowReportResponse struct {
	Cached bool       `json:"cached"`
	Report SlowReport `json:"report"`
}

func (h *handlers) slowReport(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	report, cached, err := cacheaside.GetOrComputeJSON(r.Context(), h.cache, h.reportKey, h.slowTTL, h.computeReport)
	if err != nil {
		restapi.RespondError(w, http.StatusInternalServerError, cacheErrorMessage(err), err, logger)
		return
	}
	restapi.RespondJSON(w, slowReportResponse{Cached: cached, Report: report}, logger)
}

func (h *handlers) computeReport(ctx context.Context) (SlowReport, error) {
	result, err := h.slowCompute(ctx)
	if err != nil {
		return SlowReport{}, err
	}
	hostname, err := h.hostname()
	if err != nil {
		hostname = "unknown"
	}
	return SlowReport{Result: result, Hostname: hostname, ComputedAt: time.Now().UTC()}, nil
}

func (h *handlers) cacheTest(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	if err := h.store.Set(r.Context(), CacheTestKey, CacheTestValue, 0); err != nil {
		restapi.RespondError(w, http.StatusInternalServerError, MessageStoreUnavailable, err, logger)
		return
	}
	value, found, err := h.store.Get(r.Context(), CacheTestKey)
	if err != nil {
		restapi.RespondError(w, http.StatusInternalServerError, MessageStoreUnavailable, err, logger)
		return
	}
	var body struct {
		Value *string `json:"value"`
	}
	if found {
		body.Value = &value
	}
	restapi.RespondJSON(w, body, logger)
}

func (h *handlers) counter(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	count, err := h.store.Incr(r.Context(), CounterKey)
	if err != nil {
		restapi.RespondError(w, http.StatusInternalServerError, MessageStoreUnavailable, err, logger)
		return
	}
	restapi.RespondJSON(w, map[string]int64{"count": count}, logger)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	restapi.RespondError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), nil, logging.FromContext(r.Context()))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	restapi.RespondError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), nil,
		logging.FromContext(r.Context()))
}

func cacheErrorMessage(err error) string {
	if errors.Is(err, cacheaside.ErrComputeFailed) {
		return MessageComputeFailed
	}
	return MessageStoreUnavailable
}
