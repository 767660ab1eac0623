package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/intenvy/down-to-earth/httpclient"
	"github.com/intenvy/down-to-earth/internal/tracking"
	"github.com/intenvy/down-to-earth/logger"
	"github.com/intenvy/down-to-earth/ratelimit"
	"github.com/intenvy/down-to-earth/retry"
	"github.com/intenvy/down-to-earth/trace"
)

const tracerName = "github.com/intenvy/down-to-earth/fetch"

// ErrNilTransport is returned by New when no transport is given.
var ErrNilTransport = errors.New("fetch: transport cannot be nil")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Mechanism runs the attempt loop of logical requests. It is safe for concurrent use.
type Mechanism struct {
	transport   httpclient.Transport
	classifier  retry.Classifier
	backoff     retry.BackoffPolicy
	maxAttempts int
	log         logger.Logger
	sleep       SleepFunc
	tracer      oteltrace.Tracer

	closeOnce sync.Once
}

type options struct {
	classifier  retry.Classifier
	backoff     retry.BackoffPolicy
	maxAttempts int
	log         logger.Logger
	sleep       SleepFunc
}

// Option configures a Mechanism.
type Option func(*options)

// WithClassifier sets the outcome classifier. The default is a retry.RuleClassifier
// over retry.DefaultRules.
func WithClassifier(c retry.Classifier) Option {
	return func(o *options) {
		o.classifier = c
	}
}

// WithBackoff sets the backoff policy. The default is retry.Exponential from 500ms.
func WithBackoff(b retry.BackoffPolicy) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithMaxAttempts caps the number of physical sends per logical request. Without it
// the cap comes from the classifier when it exposes MaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithSleep replaces the context-aware sleep used between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) {
		o.sleep = fn
	}
}

// New creates a Mechanism sending through transport. Rate limiting, if wanted, is
// applied by wrapping transport with httpclient.RateLimited.
func New(transport httpclient.Transport, opts ...Option) (*Mechanism, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}

	o := options{sleep: sleepContext}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.backoff == nil {
		o.backoff = retry.Exponential{First: retry.DefaultFirstDelay, Exponent: retry.DefaultExponent}
	}
	if o.classifier == nil {
		classifier, err := retry.NewRuleClassifier(retry.DefaultRules(retry.DefaultMaxAttempts))
		if err != nil {
			return nil, err
		}
		o.classifier = classifier
	}
	if o.maxAttempts == 0 {
		o.maxAttempts = retry.DefaultMaxAttempts
		if budget, ok := o.classifier.(interface{ MaxAttempts() int }); ok {
			o.maxAttempts = budget.MaxAttempts()
		}
	}
	if o.maxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be at least 1, got %d", retry.ErrInvalidRules, o.maxAttempts)
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}

	return &Mechanism{
		transport:   transport,
		classifier:  o.classifier,
		backoff:     o.backoff,
		maxAttempts: o.maxAttempts,
		log:         o.log,
		sleep:       o.sleep,
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// NewFromConfig builds the limiter, classifier and backoff described by cfg and wraps
// base with the limiter. A nil base uses a session-based httpclient transport.
// Closing the Mechanism closes base and the limiter.
func NewFromConfig(cfg Config, base httpclient.Transport, log logger.Logger) (*Mechanism, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	classifier, err := retry.NewRuleClassifier(rules)
	if err != nil {
		return nil, err
	}
	limiter, err := cfg.NewLimiter("fetch", log)
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = httpclient.NewClient(log)
	}

	return New(httpclient.RateLimited(base, limiter),
		WithClassifier(classifier),
		WithBackoff(cfg.BackoffPolicy()),
		WithMaxAttempts(rules.MaxAttempts),
		WithLogger(log),
	)
}

// MaxAttempts returns the per-request attempt cap.
func (m *Mechanism) MaxAttempts() int {
	return m.maxAttempts
}

// Fetch sends req until an attempt is classified as success or fatal, or the attempt
// cap is reached. A non-retryable outcome returns a *FailedError; cancellation of ctx
// returns the context error.
func (m *Mechanism) Fetch(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, requestID := trace.EnsureRequestID(ctx)
	method := string(req.Method)
	server := serverOf(req.Domain)

	ctx, span := m.tracer.Start(ctx, "fetch "+method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.ServerAddress(server),
			attribute.String("request.id", requestID),
			attribute.Int("fetch.max_attempts", m.maxAttempts),
		),
	)
	defer span.End()

	log := m.log.WithFields(map[string]any{
		"request_id": requestID,
		"method":     method,
		"url":        req.URL(),
	})

	var (
		attempt Attempt
		last    retry.Outcome
		resp    *httpclient.Response
	)
	for attempt.Number() < m.maxAttempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, m.cancelled(ctx, span, log, method, server, attempt.Number(), ctxErr)
		}
		n := attempt.Next()
		start := time.Now()

		var err error
		resp, err = m.transport.Send(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, m.cancelled(ctx, span, log, method, server, n, ctxErr)
			}
			if errors.Is(err, ratelimit.ErrClosed) || errors.Is(err, ratelimit.ErrEvictorFailed) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}

		last = retry.Outcome{Attempt: n, Err: err}
		if resp != nil {
			last.Status = resp.StatusCode
		}
		m.recordAttempt(ctx, span, method, server, last, time.Since(start))

		result := m.classifier.Classify(last)
		switch result.Kind {
		case retry.Success:
			span.SetAttributes(semconv.HTTPResponseStatusCode(last.Status), attribute.Int("fetch.attempts", n))
			span.SetStatus(codes.Ok, "")
			log.Debug().Int("attempt", n).Int("status", last.Status).Msg("Fetch succeeded")
			return resp, nil
		case retry.Fatal:
			return nil, m.fail(ctx, span, log, method, server, &FailedError{
				Reason:     result.Reason,
				StatusCode: result.StatusCode,
				Err:        result.Err,
				Attempts:   n,
				Response:   resp,
			})
		}

		if n >= m.maxAttempts {
			break
		}

		delay := m.backoff.Delay(n, err)
		tracking.RecordRetry(ctx, method, server)
		log.Debug().
			Int("attempt", n).
			Int("status", last.Status).
			Err(err).
			Dur("delay", delay).
			Msg("Retrying request")
		if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
			return nil, m.cancelled(ctx, span, log, method, server, n, sleepErr)
		}
	}

	return nil, m.fail(ctx, span, log, method, server, &FailedError{
		Reason:     retry.ReasonMaxAttempts,
		StatusCode: last.Status,
		Err:        last.Err,
		Attempts:   attempt.Number(),
		Response:   resp,
	})
}

// Close closes the transport chain once. Repeated calls return nil.
func (m *Mechanism) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.transport.Close()
	})
	return err
}

func (m *Mechanism) recordAttempt(ctx context.Context, span oteltrace.Span, method, server string, o retry.Outcome, d time.Duration) {
	category := ""
	attrs := []attribute.KeyValue{attribute.Int("attempt", o.Attempt)}
	if o.HasResponse() {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(o.Status))
	}
	if o.Err != nil {
		category = retry.CategoryOf(o.Err).String()
		attrs = append(attrs, attribute.String("error.category", category))
	}
	span.AddEvent("attempt", oteltrace.WithAttributes(attrs...))
	tracking.RecordAttempt(ctx, method, server, o.Status, category, d)
}

func (m *Mechanism) fail(ctx context.Context, span oteltrace.Span, log logger.Logger, method, server string, failure *FailedError) error {
	tracking.RecordFailure(ctx, method, server, failure.Reason)
	span.SetAttributes(attribute.Int("fetch.attempts", failure.Attempts))
	if failure.StatusCode != 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(failure.StatusCode))
	}
	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Reason)
	log.Warn().
		Int("attempts", failure.Attempts).
		Int("status", failure.StatusCode).
		Err(failure.Err).
		Msgf("Fetch failed: %s", failure.Reason)
	return failure
}

func (m *Mechanism) cancelled(ctx context.Context, span oteltrace.Span, log logger.Logger, method, server string, attempt int, err error) error {
	tracking.RecordFailure(ctx, method, server, "cancelled")
	span.SetAttributes(attribute.Int("fetch.attempts", attempt))
	span.SetStatus(codes.Error, err.Error())
	log.Debug().Int("attempt", attempt).Err(err).Msg("Fetch cancelled")
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serverOf returns the host of domain for metric attributes.
func serverOf(domain string) string {
	if u, err := url.Parse(domain); err == nil && u.Host != "" {
		return u.Host
	}
	return domain
}
