package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	ResetForTesting()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		ResetForTesting()
	})

	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			continue
		}
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum for %s", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func assertAttribute(t *testing.T, set attribute.Set, key string, expected any) {
	t.Helper()
	v, ok := set.Value(attribute.Key(key))
	require.True(t, ok, "attribute %s missing", key)
	assert.Equal(t, expected, v.AsInterface(), "attribute %s value mismatch", key)
}

func TestRecordAttempt(t *testing.T) {
	reader := setupTestMeterProvider(t)

	RecordAttempt(context.Background(), "GET", "api.example.com", 503, "", 20*time.Millisecond)
	RecordAttempt(context.Background(), "GET", "api.example.com", 0, "timeout", 30*time.Millisecond)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics[metricFetchAttempts]))

	hist, ok := metrics[metricAttemptDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2)

	for _, dp := range hist.DataPoints {
		assertAttribute(t, dp.Attributes, attrMethod, "GET")
		assertAttribute(t, dp.Attributes, attrServer, "api.example.com")
		if v, ok := dp.Attributes.Value(attrStatusCode); ok {
			assert.Equal(t, int64(503), v.AsInt64())
		} else {
			assertAttribute(t, dp.Attributes, attrErrorType, "timeout")
		}
	}
}

func TestRecordRetryAndFailure(t *testing.T) {
	reader := setupTestMeterProvider(t)

	RecordRetry(context.Background(), "POST", "h")
	RecordRetry(context.Background(), "POST", "h")
	RecordFailure(context.Background(), "POST", "h", "maximum attempts reached")

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics[metricFetchRetries]))
	assert.Equal(t, int64(1), sumOf(t, metrics[metricFetchFailures]))

	sum := metrics[metricFetchFailures].Data.(metricdata.Sum[int64])
	assertAttribute(t, sum.DataPoints[0].Attributes, attrReason, "maximum attempts reached")
}

func TestLimiterInstruments(t *testing.T) {
	reader := setupTestMeterProvider(t)

	RecordLimiterWait(context.Background(), "queue", 5*time.Millisecond)
	AddInFlight(context.Background(), "queue", 1)
	AddInFlight(context.Background(), "queue", 1)
	AddInFlight(context.Background(), "queue", -1)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, metrics[metricLimiterInFlight]))

	hist, ok := metrics[metricLimiterWait].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assertAttribute(t, hist.DataPoints[0].Attributes, attrLimiterName, "queue")
}

func TestRegisterLimiterMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)

	stats := LimiterStats{Admitted: 7, QueuedTokens: 3}
	cleanup := RegisterLimiterMetrics(func() LimiterStats { return stats }, "queue")

	metrics := collect(t, reader)
	assert.Equal(t, int64(7), sumOf(t, metrics[metricLimiterAdmitted]))
	assert.Equal(t, int64(3), sumOf(t, metrics[metricLimiterQueued]))

	cleanup()
	stats.Admitted = 100
	metrics = collect(t, reader)
	if m, ok := metrics[metricLimiterAdmitted]; ok {
		assert.NotEqual(t, int64(100), sumOf(t, m))
	}
}

func TestResetForTesting(t *testing.T) {
	setupTestMeterProvider(t)
	RecordRetry(context.Background(), "GET", "h")
	assert.True(t, IsInitialized())

	ResetForTesting()
	assert.False(t, IsInitialized())
}
