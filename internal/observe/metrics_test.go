package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/popup"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics,
	name string) *metricdata.Metrics {

	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

// sumFor returns the counter value for the data point carrying attr.
func sumFor(t *testing.T, m *metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()

	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "unexpected data %T", m.Data)

	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			return dp.Value
		}
	}

	return 0
}

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return m, reader
}

func TestRecordLookup(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLookup(ctx, true)
	m.RecordLookup(ctx, false)
	m.RecordLookup(ctx, false)

	lookups := findMetric(collect(t, reader), "rca.cache.lookups")
	require.EqualValues(t, 1, sumFor(t, lookups, attribute.String("result", "hit")))
	require.EqualValues(t, 2, sumFor(t, lookups, attribute.String("result", "miss")))
}

func TestRecordEviction(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEviction(ctx, cache.EvictOverflow, 50)
	m.RecordEviction(ctx, cache.EvictExpired, 0)

	evictions := findMetric(collect(t, reader), "rca.cache.evictions")
	require.EqualValues(t, 50, sumFor(t, evictions,
		attribute.String("reason", cache.EvictOverflow)))
	require.Zero(t, sumFor(t, evictions,
		attribute.String("reason", cache.EvictExpired)))
}

func TestRecordPipeline(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	m.RecordPipeline(context.Background(), popup.OutcomeSuccess,
		120*time.Millisecond)

	rm := collect(t, reader)
	require.EqualValues(t, 1, sumFor(t, findMetric(rm, "rca.pipeline.runs"),
		attribute.String("outcome", popup.OutcomeSuccess)))

	hist := findMetric(rm, "rca.pipeline.duration_ms")
	require.NotNil(t, hist)
	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	require.EqualValues(t, 1, data.DataPoints[0].Count)
}

func TestProviderServesPrometheus(t *testing.T) {
	t.Parallel()

	p, err := NewProvider()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Shutdown(context.Background())
	})

	p.RecordLookup(context.Background(), true)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "rca_cache_lookups")
}
