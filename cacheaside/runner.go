// Package cacheaside implementa o padrão cache-aside sobre um key-value store com TTL:
// consulta o store, e em caso de ausência calcula, grava com TTL e devolve o valor.
//
// Não há coalescência de requisições: dois misses concorrentes calculam e gravam
// ambos. A função de cálculo precisa ser determinística/idempotente.
package cacheaside

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ssgreg/logf"

	"api-demo/logging"
)

var (
	ErrStoreUnavailable = errors.New("cacheaside: store unavailable")
	ErrComputeFailed    = errors.New("cacheaside: compute failed")
	ErrInvalidArgument  = errors.New("cacheaside: invalid argument")
)

// Store é o subconjunto do key-value store usado pelo cache-aside.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ComputeFunc produz o valor a ser cacheado. Pode ser lenta; deve respeitar ctx.
type ComputeFunc func(ctx context.Context) (string, error)

type Result struct {
	Value  string
	Cached bool
}

type Runner struct {
	Store Store

	// ComputeTimeout limita cada cálculo. <= 0: sem limite além do ctx do chamador.
	ComputeTimeout time.Duration

	Metrics MetricsCollector
}

// GetOrCompute devolve o valor cacheado (Cached=true) ou calcula, grava com ttl
// e devolve (Cached=false). Falha de cálculo nunca é gravada.
func (r Runner) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (Result, error) {
	return r.getOrCompute(ctx, key, ttl, compute, nil)
}

// getOrCompute é o fluxo comum. valid, se não nil, decide se um valor cacheado é
// utilizável; um valor inválido conta como miss e é recalculado.
func (r Runner) getOrCompute(
	ctx context.Context, key string, ttl time.Duration, compute ComputeFunc, valid func(string) bool,
) (Result, error) {
	if key == "" {
		return Result{}, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	if ttl <= 0 {
		return Result{}, fmt.Errorf("%w: ttl must be > 0, got %s", ErrInvalidArgument, ttl)
	}
	if compute == nil {
		return Result{}, fmt.Errorf("%w: nil compute func", ErrInvalidArgument)
	}
	if r.Store == nil {
		return Result{}, fmt.Errorf("%w: no store configured", ErrStoreUnavailable)
	}
	metrics := r.metrics()

	value, found, err := r.Store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("%w: get %q: %w", ErrStoreUnavailable, key, err)
	}
	if found && (valid == nil || valid(value)) {
		metrics.IncHits()
		return Result{Value: value, Cached: true}, nil
	}
	if found {
		logging.FromContext(ctx).Warn("discarding unreadable cache entry", logf.String("key", key))
	}
	metrics.IncMisses()

	value, err = r.computeAndStore(ctx, key, ttl, compute)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: value, Cached: false}, nil
}

func (r Runner) computeAndStore(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (string, error) {
	started := time.Now()
	value, err := r.compute(ctx, compute)
	r.metrics().ObserveCompute(time.Since(started), err)
	if err != nil {
		return "", fmt.Errorf("%w: key %q: %w", ErrComputeFailed, key, err)
	}

	if err := r.Store.Set(ctx, key, value, ttl); err != nil {
		return "", fmt.Errorf("%w: set %q: %w", ErrStoreUnavailable, key, err)
	}
	logging.FromContext(ctx).Debug("cache entry computed",
		logf.String("key", key), logf.Duration("ttl", ttl), logf.Duration("took", time.Since(started)))
	return value, nil
}

// compute roda fn com o timeout configurado. Se fn ignorar o ctx, a goroutine
// continua até terminar, mas o chamador é liberado no prazo.
func (r Runner) compute(ctx context.Context, fn ComputeFunc) (string, error) {
	if r.ComputeTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.ComputeTimeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r Runner) metrics() MetricsCollector {
	if r.Metrics == nil {
		return disabledMetrics{}
	}
	return r.Metrics
}
