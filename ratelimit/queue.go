package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TokenQueueLimiter enforces the rate cap with a bounded queue of tokens, one per
// admission, that a background goroutine ages out every 1/rate seconds. A full
// queue blocks new admissions.
type TokenQueueLimiter struct {
	*admission

	rate     int
	interval time.Duration
	tokens   chan struct{}
	now      func() time.Time

	// lastEviction is owned by the evictor goroutine after construction.
	lastEviction time.Time
	// filledAt is when a token last entered an empty queue, in Unix nanoseconds.
	filledAt atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

var _ Limiter = (*TokenQueueLimiter)(nil)

// New starts a TokenQueueLimiter admitting at most ratePerSecond calls per second
// and concurrency calls at once.
func New(ratePerSecond, concurrency int, opts ...Option) (*TokenQueueLimiter, error) {
	if err := validate(ratePerSecond, concurrency); err != nil {
		return nil, err
	}
	o := buildOptions("queue", opts)

	l := &TokenQueueLimiter{
		rate:     ratePerSecond,
		interval: max(time.Second/time.Duration(ratePerSecond), time.Nanosecond),
		tokens:   make(chan struct{}, ratePerSecond),
		now:      o.now,
		done:     make(chan struct{}),
	}
	l.admission = newAdmission(o, concurrency, func() int { return len(l.tokens) })
	l.lastEviction = l.now()

	go l.evictLoop()

	l.log.Debug().
		Str("limiter", l.name).
		Int("rate_per_second", ratePerSecond).
		Int("concurrency", concurrency).
		Msg("Rate limiter started")
	return l, nil
}

// Do implements Limiter.
func (l *TokenQueueLimiter) Do(ctx context.Context, fn func(context.Context) error) error {
	return l.do(ctx, fn, l.addToken)
}

func (l *TokenQueueLimiter) addToken(ctx context.Context) error {
	wasEmpty := len(l.tokens) == 0
	select {
	case l.tokens <- struct{}{}:
		if wasEmpty {
			l.filledAt.Store(l.now().UnixNano())
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the evictor and waits for it. Callers still waiting in Do return
// ErrClosed. A failure of the evictor is returned by the first Close.
func (l *TokenQueueLimiter) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.shutdown()
		<-l.done
		err = l.failed()
		l.log.Debug().Str("limiter", l.name).Msg("Rate limiter stopped")
	})
	return err
}

// Stats returns the current counters.
func (l *TokenQueueLimiter) Stats() Stats {
	return l.stats(len(l.tokens))
}

func (l *TokenQueueLimiter) evictLoop() {
	defer close(l.done)
	defer func() {
		if r := recover(); r != nil {
			l.fail(fmt.Errorf("%w: %v", ErrEvictorFailed, r))
		}
	}()

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-l.life.Done():
			return
		case <-timer.C:
			l.evict()
			timer.Reset(l.interval)
		}
	}
}

// evict drops one token per full interval elapsed since the later of the previous
// eviction and the moment the queue last stopped being empty. An empty queue
// leaves lastEviction untouched, so idle time never turns into a burst.
func (l *TokenQueueLimiter) evict() {
	queued := len(l.tokens)
	if queued == 0 {
		return
	}
	now := l.now()
	from := l.lastEviction
	if filled := l.filledAt.Load(); filled != 0 {
		if at := time.Unix(0, filled); at.After(from) {
			from = at
		}
	}
	n := min(queued, int(now.Sub(from)/l.interval))
	for range n {
		select {
		case <-l.tokens:
		default:
		}
	}
	l.lastEviction = now
}
