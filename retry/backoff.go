package retry

import (
	"math"
	"time"
)

// DefaultFirstDelay and DefaultExponent are the backoff defaults.
const (
	DefaultFirstDelay = 500 * time.Millisecond
	DefaultExponent   = 2.0
)

// BackoffPolicy computes the wait before the next attempt. attempt is the 1-based
// number of the attempt that just failed and err is its transport error, if any.
type BackoffPolicy interface {
	Delay(attempt int, err error) time.Duration
}

// Exponential grows the delay only for timeouts: First * Exponent^attempt.
// Every other retryable outcome waits exactly First.
type Exponential struct {
	First    time.Duration
	Exponent float64
}

// Delay implements BackoffPolicy.
func (e Exponential) Delay(attempt int, err error) time.Duration {
	if err == nil || CategoryOf(err) != Timeout {
		return e.First
	}
	d := float64(e.First) * math.Pow(e.Exponent, float64(attempt))
	if d > math.MaxInt64 || math.IsInf(d, 0) || math.IsNaN(d) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Constant always waits Wait, whatever the outcome.
type Constant struct {
	Wait time.Duration
}

// Delay implements BackoffPolicy.
func (c Constant) Delay(int, error) time.Duration {
	return c.Wait
}
