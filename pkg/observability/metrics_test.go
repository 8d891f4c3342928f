package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/querycheck/pkg/observability"
)

func newReader(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}

	return total
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	mp, reader := newReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	red.RecordRequest(ctx, "textDocument/didOpen", observability.StatusOK, 2*time.Millisecond)
	red.RecordRequest(ctx, "query_check", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "querycheck.requests.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "querycheck.errors.total")))
	require.NotNil(t, findMetric(rm, "querycheck.request.duration.seconds"))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	mp, reader := newReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := red.TrackInflight(context.Background(), "query_check")
	assert.Equal(t, int64(1), sumOf(t, findMetric(collectMetrics(t, reader), "querycheck.inflight.requests")))

	done()
	assert.Equal(t, int64(0), sumOf(t, findMetric(collectMetrics(t, reader), "querycheck.inflight.requests")))
}

func TestREDMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var red *observability.REDMetrics

	assert.NotPanics(t, func() {
		red.RecordRequest(context.Background(), "op", observability.StatusOK, time.Millisecond)
		red.TrackInflight(context.Background(), "op")()
	})
}

func TestCheckMetrics_RecordFile(t *testing.T) {
	t.Parallel()

	mp, reader := newReader(t)

	cm, err := observability.NewCheckMetrics(mp.Meter("test"))
	require.NoError(t, err)

	cm.RecordFile(context.Background(), observability.CheckStats{
		Language:     "lua",
		Patterns:     3,
		IssuesByKind: map[string]int{"InvalidNode": 1, "UnexpectedChildNode": 2},
		SyntaxErrors: 1,
		Truncated:    1,
		Rounds:       []int{1, 4, 9},
		Duration:     3 * time.Millisecond,
	})

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "querycheck.check.files.total")))
	assert.Equal(t, int64(3), sumOf(t, findMetric(rm, "querycheck.check.patterns.total")))
	assert.Equal(t, int64(3), sumOf(t, findMetric(rm, "querycheck.check.issues.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "querycheck.check.syntax_errors.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "querycheck.check.truncated.total")))

	rounds := findMetric(rm, "querycheck.check.rounds")
	require.NotNil(t, rounds)

	hist, ok := rounds.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(3), hist.DataPoints[0].Count)
}

func TestCheckMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var cm *observability.CheckMetrics

	assert.NotPanics(t, func() {
		cm.RecordFile(context.Background(), observability.CheckStats{Patterns: 1})
	})
}
