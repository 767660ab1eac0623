// Package tracking records OpenTelemetry metrics for the fetch loop and the rate limiters.
// Instruments are created lazily from the global meter provider, so the package is
// silent until observability installs a real provider.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "down-to-earth/fetch"

	// Per physical attempt, following the OTel HTTP client conventions
	metricAttemptDuration = "http.client.request.duration" // Histogram in seconds

	metricFetchAttempts = "fetch.attempts" // Counter
	metricFetchRetries  = "fetch.retries"  // Counter
	metricFetchFailures = "fetch.failures" // Counter

	metricLimiterWait     = "ratelimit.wait.duration" // Histogram in seconds
	metricLimiterInFlight = "ratelimit.in_flight"     // UpDownCounter
	metricLimiterAdmitted = "ratelimit.admitted"      // Observable counter
	metricLimiterQueued   = "ratelimit.queued_tokens" // Observable gauge-like up-down counter

	attrMethod      = "http.request.method"
	attrServer      = "server.address"
	attrStatusCode  = "http.response.status_code"
	attrErrorType   = "error.type"
	attrReason      = "fetch.failure.reason"
	attrLimiterName = "ratelimit.name"
)

var (
	meter         metric.Meter
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	attemptDuration metric.Float64Histogram
	attemptCounter  metric.Int64Counter
	retryCounter    metric.Int64Counter
	failureCounter  metric.Int64Counter
	limiterWait     metric.Float64Histogram
	limiterInFlight metric.Int64UpDownCounter
)

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize fetch metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}

	meter = otel.Meter(meterName)

	var err error

	attemptDuration, err = meter.Float64Histogram(
		metricAttemptDuration,
		metric.WithDescription("Duration of each physical HTTP attempt"),
		metric.WithUnit("s"),
	)
	logMetricError(metricAttemptDuration, err)

	attemptCounter, err = meter.Int64Counter(
		metricFetchAttempts,
		metric.WithDescription("Number of physical attempts sent"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(metricFetchAttempts, err)

	retryCounter, err = meter.Int64Counter(
		metricFetchRetries,
		metric.WithDescription("Number of attempts classified as retryable"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricFetchRetries, err)

	failureCounter, err = meter.Int64Counter(
		metricFetchFailures,
		metric.WithDescription("Number of logical fetches that ended fatally"),
		metric.WithUnit("{failure}"),
	)
	logMetricError(metricFetchFailures, err)

	limiterWait, err = meter.Float64Histogram(
		metricLimiterWait,
		metric.WithDescription("Time spent waiting for limiter admission"),
		metric.WithUnit("s"),
	)
	logMetricError(metricLimiterWait, err)

	limiterInFlight, err = meter.Int64UpDownCounter(
		metricLimiterInFlight,
		metric.WithDescription("Calls currently holding a concurrency slot"),
		metric.WithUnit("{call}"),
	)
	logMetricError(metricLimiterInFlight, err)

	metricsInited = true
}

func ensureMeterInitialized() {
	meterOnce.Do(initMeter)
}

// RecordAttempt records one physical attempt. status is 0 when no response arrived;
// category names the transport error class in that case.
func RecordAttempt(ctx context.Context, method, server string, status int, category string, duration time.Duration) {
	ensureMeterInitialized()

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrServer, server),
	}
	if status != 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, status))
	}
	if category != "" {
		attrs = append(attrs, attribute.String(attrErrorType, category))
	}

	if attemptDuration != nil {
		attemptDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if attemptCounter != nil {
		attemptCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRetry counts an attempt that will be followed by another one.
func RecordRetry(ctx context.Context, method, server string) {
	ensureMeterInitialized()
	if retryCounter != nil {
		retryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrServer, server),
		))
	}
}

// RecordFailure counts a logical fetch that ended with a fatal classification.
func RecordFailure(ctx context.Context, method, server, reason string) {
	ensureMeterInitialized()
	if failureCounter != nil {
		failureCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrServer, server),
			attribute.String(attrReason, reason),
		))
	}
}

// RecordLimiterWait records how long a caller waited before admission.
func RecordLimiterWait(ctx context.Context, limiter string, wait time.Duration) {
	ensureMeterInitialized()
	if limiterWait != nil {
		limiterWait.Record(ctx, wait.Seconds(), metric.WithAttributes(attribute.String(attrLimiterName, limiter)))
	}
}

// AddInFlight moves the in-flight gauge of a limiter by delta.
func AddInFlight(ctx context.Context, limiter string, delta int64) {
	ensureMeterInitialized()
	if limiterInFlight != nil {
		limiterInFlight.Add(ctx, delta, metric.WithAttributes(attribute.String(attrLimiterName, limiter)))
	}
}

// LimiterStats holds the counters exported for a limiter on each collection.
type LimiterStats struct {
	Admitted     uint64
	QueuedTokens int
}

type limiterRegistration struct {
	statsProvider func() LimiterStats
	admitted      metric.Int64ObservableCounter
	queued        metric.Int64ObservableUpDownCounter
	baseAttrs     []attribute.KeyValue
}

func (r *limiterRegistration) observe(_ context.Context, observer metric.Observer) error {
	stats := r.statsProvider()
	if r.admitted != nil {
		observer.ObserveInt64(r.admitted, int64(stats.Admitted), metric.WithAttributes(r.baseAttrs...))
	}
	if r.queued != nil {
		observer.ObserveInt64(r.queued, int64(stats.QueuedTokens), metric.WithAttributes(r.baseAttrs...))
	}
	return nil
}

func noOpCleanup() func() {
	return func() { /** no-op **/ }
}

// RegisterLimiterMetrics registers observable metrics for a limiter.
// statsProvider is called on every collection; the returned func unregisters it.
func RegisterLimiterMetrics(statsProvider func() LimiterStats, limiter string) func() {
	ensureMeterInitialized()

	if meter == nil {
		return noOpCleanup()
	}

	reg := &limiterRegistration{
		statsProvider: statsProvider,
		baseAttrs:     []attribute.KeyValue{attribute.String(attrLimiterName, limiter)},
	}

	var err error
	reg.admitted, err = meter.Int64ObservableCounter(metricLimiterAdmitted,
		metric.WithDescription("Calls admitted since the limiter started"))
	logMetricError(metricLimiterAdmitted, err)
	reg.queued, err = meter.Int64ObservableUpDownCounter(metricLimiterQueued,
		metric.WithDescription("Rate tokens currently held in the window"))
	logMetricError(metricLimiterQueued, err)

	var instruments []metric.Observable
	if reg.admitted != nil {
		instruments = append(instruments, reg.admitted)
	}
	if reg.queued != nil {
		instruments = append(instruments, reg.queued)
	}
	if len(instruments) == 0 {
		return noOpCleanup()
	}

	registration, err := meter.RegisterCallback(reg.observe, instruments...)
	if err != nil {
		logMetricError("limiter_metrics_callback", err)
		return noOpCleanup()
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("limiter_metrics_unregister", err)
		}
	}
}

// IsInitialized returns true if the instruments have been created.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting drops all instruments so the next call binds to the current provider.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter = nil
	attemptDuration = nil
	attemptCounter = nil
	retryCounter = nil
	failureCounter = nil
	limiterWait = nil
	limiterInFlight = nil
	metricsInited = false
	meterOnce = sync.Once{}
}
