package cacheaside

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"api-demo/kv"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*kv.MemoryStore, *manualClock) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return kv.NewMemoryStore(kv.WithClock(clock.Now)), clock
}

func countingCompute(calls *int32, value string) ComputeFunc {
	return func(ctx context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	r := Runner{Store: store}
	var calls int32

	res, err := r.GetOrCompute(ctx, "slow_result", 10*time.Second, countingCompute(&calls, "done"))
	require.NoError(t, err)
	require.Equal(t, Result{Value: "done", Cached: false}, res)

	res, err = r.GetOrCompute(ctx, "slow_result", 10*time.Second, countingCompute(&calls, "other"))
	require.NoError(t, err)
	require.Equal(t, Result{Value: "done", Cached: true}, res)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrCompute_RecomputesAfterTTL(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()
	r := Runner{Store: store}
	var calls int32

	_, err := r.GetOrCompute(ctx, "slow_result", 10*time.Second, countingCompute(&calls, "done"))
	require.NoError(t, err)

	clock.Advance(9 * time.Second)
	res, err := r.GetOrCompute(ctx, "slow_result", 10*time.Second, countingCompute(&calls, "done"))
	require.NoError(t, err)
	require.True(t, res.Cached)

	clock.Advance(time.Second)
	res, err = r.GetOrCompute(ctx, "slow_result", 10*time.Second, countingCompute(&calls, "done"))
	require.NoError(t, err)
	require.False(t, res.Cached)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrCompute_ComputeFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	r := Runner{Store: store}
	boom := errors.New("boom")

	_, err := r.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, ErrComputeFailed)
	require.ErrorIs(t, err, boom)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetOrCompute_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	store.FailWith(errors.New("connection refused"))
	r := Runner{Store: store}
	var calls int32

	_, err := r.GetOrCompute(ctx, "k", time.Minute, countingCompute(&calls, "v"))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, kv.ErrUnavailable)
	require.Zero(t, atomic.LoadInt32(&calls))
}

type failingSetStore struct {
	*kv.MemoryStore
}

func (s failingSetStore) Set(context.Context, string, string, time.Duration) error {
	return kv.ErrUnavailable
}

func TestGetOrCompute_SetFailure(t *testing.T) {
	store, _ := newTestStore()
	r := Runner{Store: failingSetStore{store}}

	_, err := r.GetOrCompute(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
		return "v", nil
	})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrComputeFailed)
}

func TestGetOrCompute_ComputeTimeout(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	r := Runner{Store: store, ComputeTimeout: 20 * time.Millisecond}
	release := make(chan struct{})
	defer close(release)

	started := time.Now()
	_, err := r.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	})
	require.ErrorIs(t, err, ErrComputeFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), time.Second)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetOrCompute_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	r := Runner{Store: store}
	compute := func(ctx context.Context) (string, error) { return "v", nil }

	_, err := r.GetOrCompute(ctx, "", time.Minute, compute)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = r.GetOrCompute(ctx, "k", 0, compute)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = r.GetOrCompute(ctx, "k", time.Minute, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Runner{}.GetOrCompute(ctx, "k", time.Minute, compute)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestGetOrCompute_Metrics(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	metrics := NewPrometheusMetrics(PrometheusMetricsOpts{Namespace: "test"})
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	r := Runner{Store: store, Metrics: metrics}

	_, err := r.GetOrCompute(ctx, "a", time.Minute, func(ctx context.Context) (string, error) { return "1", nil })
	require.NoError(t, err)
	_, err = r.GetOrCompute(ctx, "a", time.Minute, func(ctx context.Context) (string, error) { return "1", nil })
	require.NoError(t, err)
	_, err = r.GetOrCompute(ctx, "b", time.Minute, func(ctx context.Context) (string, error) { return "", errors.New("x") })
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.HitsTotal))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.MissesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ComputeFailuresTotal))
	require.Equal(t, uint64(2), histogramSampleCount(t, metrics.ComputeDuration))
}

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}
