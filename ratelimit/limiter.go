// Package ratelimit admits callers under two caps at once: a maximum number of
// admissions per second and a maximum number of calls in flight.
//
// Rate tokens are not returned when a call finishes. They age out on the limiter's
// own schedule, so the rate cap bounds new admissions per unit of time while the
// concurrency cap bounds simultaneous work.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/intenvy/down-to-earth/internal/tracking"
	"github.com/intenvy/down-to-earth/logger"
)

var (
	// ErrInvalidConfiguration is returned by constructors for a rate or concurrency below 1.
	ErrInvalidConfiguration = errors.New("ratelimit: invalid configuration")
	// ErrClosed is returned to callers that reach or wait in Do after Close.
	ErrClosed = errors.New("ratelimit: limiter closed")
	// ErrEvictorFailed wraps a panic raised by the background token evictor.
	ErrEvictorFailed = errors.New("ratelimit: token evictor failed")
)

// Limiter runs functions under a rate cap and a concurrency cap.
type Limiter interface {
	// Do blocks until a concurrency slot and a rate slot are both available, then runs fn.
	// The concurrency slot is released when fn returns or panics.
	Do(ctx context.Context, fn func(context.Context) error) error
	// Close stops background work. Calling it more than once is safe.
	Close() error
}

// Stats is a point-in-time view of a limiter.
type Stats struct {
	Admitted     uint64
	InFlight     int64
	QueuedTokens int
}

type options struct {
	name string
	log  logger.Logger
	now  func() time.Time
}

// Option configures a limiter.
type Option func(*options)

// WithName sets the name reported in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock replaces time.Now for token aging.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(kind string, opts []Option) options {
	o := options{name: kind, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validate(ratePerSecond, concurrency int) error {
	if ratePerSecond < 1 {
		return fmt.Errorf("%w: rate limit must be a positive number, got %d", ErrInvalidConfiguration, ratePerSecond)
	}
	if concurrency < 1 {
		return fmt.Errorf("%w: concurrency limit must be a positive number, got %d", ErrInvalidConfiguration, concurrency)
	}
	return nil
}

// admission holds the state shared by every limiter: the concurrency slots, the
// lifetime context cancelled by Close, the counters and the sticky failure.
type admission struct {
	name  string
	log   logger.Logger
	slots *semaphore.Weighted

	life   context.Context
	cancel context.CancelFunc

	admitted atomic.Uint64
	inFlight atomic.Int64

	mu      sync.Mutex
	failure error

	unregisterMetrics func()
}

func newAdmission(o options, concurrency int, queued func() int) *admission {
	life, cancel := context.WithCancel(context.Background())
	a := &admission{
		name:   o.name,
		log:    o.log,
		slots:  semaphore.NewWeighted(int64(concurrency)),
		life:   life,
		cancel: cancel,
	}
	a.unregisterMetrics = tracking.RegisterLimiterMetrics(func() tracking.LimiterStats {
		return tracking.LimiterStats{Admitted: a.admitted.Load(), QueuedTokens: queued()}
	}, o.name)
	return a
}

// do runs fn once a concurrency slot is held and waitRate has admitted the caller.
func (a *admission) do(ctx context.Context, fn func(context.Context) error, waitRate func(context.Context) error) error {
	if err := a.terminalErr(); err != nil {
		return err
	}

	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(a.life, stop)
	defer unlink()

	start := time.Now()
	if err := a.slots.Acquire(waitCtx, 1); err != nil {
		return a.admitErr(ctx, err)
	}
	defer a.slots.Release(1)

	if err := waitRate(waitCtx); err != nil {
		return a.admitErr(ctx, err)
	}
	tracking.RecordLimiterWait(ctx, a.name, time.Since(start))

	a.admitted.Add(1)
	a.inFlight.Add(1)
	tracking.AddInFlight(ctx, a.name, 1)
	defer func() {
		a.inFlight.Add(-1)
		tracking.AddInFlight(ctx, a.name, -1)
	}()

	return fn(ctx)
}

// admitErr explains why a wait was interrupted. A background failure wins over the
// caller's own context, which wins over Close.
func (a *admission) admitErr(ctx context.Context, waitErr error) error {
	if err := a.failed(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.life.Err() != nil {
		return ErrClosed
	}
	return waitErr
}

func (a *admission) terminalErr() error {
	if err := a.failed(); err != nil {
		return err
	}
	if a.life.Err() != nil {
		return ErrClosed
	}
	return nil
}

func (a *admission) failed() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failure
}

// fail records err and unwinds every waiting caller.
func (a *admission) fail(err error) {
	a.mu.Lock()
	if a.failure == nil {
		a.failure = err
	}
	a.mu.Unlock()
	a.log.Error().Err(err).Str("limiter", a.name).Msg("Rate limiter background process failed")
	a.cancel()
}

func (a *admission) shutdown() {
	a.cancel()
	a.unregisterMetrics()
}

func (a *admission) stats(queued int) Stats {
	return Stats{
		Admitted:     a.admitted.Load(),
		InFlight:     a.inFlight.Load(),
		QueuedTokens: queued,
	}
}
