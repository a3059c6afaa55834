package cacheaside

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type report struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

func TestGetOrComputeJSON(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	r := Runner{Store: store}
	calls := 0
	compute := func(ctx context.Context) (report, error) {
		calls++
		return report{Name: "daily", Total: 42}, nil
	}

	v, cached, err := GetOrComputeJSON(ctx, r, "report", time.Minute, compute)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, report{Name: "daily", Total: 42}, v)

	raw, found, err := store.Get(ctx, "report")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, `{"name":"daily","total":42}`, raw)

	v, cached, err = GetOrComputeJSON(ctx, r, "report", time.Minute, compute)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, 42, v.Total)
	require.Equal(t, 1, calls)
}

func TestGetOrComputeJSON_CorruptedEntryIsRecomputed(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	require.NoError(t, store.Set(ctx, "report", "{not json", time.Minute))
	metrics := NewPrometheusMetrics(PrometheusMetricsOpts{})
	r := Runner{Store: store, Metrics: metrics}

	v, cached, err := GetOrComputeJSON(ctx, r, "report", time.Minute, func(ctx context.Context) (report, error) {
		return report{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, "fresh", v.Name)

	raw, _, err := store.Get(ctx, "report")
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"fresh","total":0}`, raw)

	// entrada ilegível conta como miss, não como hit
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.HitsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.MissesTotal))
	require.Equal(t, uint64(1), histogramSampleCount(t, metrics.ComputeDuration))

	_, cached, err = GetOrComputeJSON(ctx, r, "report", time.Minute, func(ctx context.Context) (report, error) {
		return report{}, nil
	})
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.HitsTotal))
}

func TestGetOrComputeJSON_NilCompute(t *testing.T) {
	store, _ := newTestStore()
	_, _, err := GetOrComputeJSON[report](context.Background(), Runner{Store: store}, "k", time.Minute, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
