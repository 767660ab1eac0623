package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// BucketLimiter enforces the rate cap with a token bucket (burst = rate) instead of
// queue aging. Admission is smoother and needs no background goroutine.
type BucketLimiter struct {
	*admission

	bucket    *rate.Limiter
	closeOnce sync.Once
}

var _ Limiter = (*BucketLimiter)(nil)

// NewBucket creates a BucketLimiter admitting at most ratePerSecond calls per
// second and concurrency calls at once.
func NewBucket(ratePerSecond, concurrency int, opts ...Option) (*BucketLimiter, error) {
	if err := validate(ratePerSecond, concurrency); err != nil {
		return nil, err
	}
	o := buildOptions("bucket", opts)

	l := &BucketLimiter{bucket: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond)}
	l.admission = newAdmission(o, concurrency, l.queued)

	l.log.Debug().
		Str("limiter", l.name).
		Int("rate_per_second", ratePerSecond).
		Int("concurrency", concurrency).
		Msg("Rate limiter started")
	return l, nil
}

// Do implements Limiter.
func (l *BucketLimiter) Do(ctx context.Context, fn func(context.Context) error) error {
	return l.do(ctx, fn, l.wait)
}

// wait reports a wait that cannot finish before the deadline as DeadlineExceeded.
func (l *BucketLimiter) wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return nil
}

// Close releases waiting callers with ErrClosed. Repeated calls return nil.
func (l *BucketLimiter) Close() error {
	l.closeOnce.Do(func() {
		l.shutdown()
		l.log.Debug().Str("limiter", l.name).Msg("Rate limiter stopped")
	})
	return nil
}

// Stats returns the current counters. QueuedTokens is the part of the burst in use.
func (l *BucketLimiter) Stats() Stats {
	return l.stats(l.queued())
}

func (l *BucketLimiter) queued() int {
	used := float64(l.bucket.Burst()) - l.bucket.Tokens()
	return max(0, int(math.Ceil(used)))
}
