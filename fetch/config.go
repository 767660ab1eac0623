package fetch

import (
	"fmt"
	"time"

	"github.com/intenvy/down-to-earth/logger"
	"github.com/intenvy/down-to-earth/ratelimit"
	"github.com/intenvy/down-to-earth/retry"
)

// Backoff policy names accepted by Config.Backoff.
const (
	BackoffExponential = "exponential"
	BackoffConstant    = "constant"
)

// Limiter kinds accepted by Config.Limiter.
const (
	LimiterQueue  = "queue"
	LimiterBucket = "bucket"
)

// Defaults applied by DefaultConfig.
const (
	DefaultRateLimitPerSecond = 10
	DefaultConcurrencyLimit   = 10
)

// Config is the configuration surface of a Mechanism. Nil status and category lists
// fall back to the retry package defaults; an explicitly empty list stays empty.
type Config struct {
	RateLimitPerSecond int           `koanf:"ratelimitpersecond" json:"ratelimitpersecond" yaml:"ratelimitpersecond" mapstructure:"ratelimitpersecond" validate:"min=1"`
	ConcurrencyLimit   int           `koanf:"concurrencylimit" json:"concurrencylimit" yaml:"concurrencylimit" mapstructure:"concurrencylimit" validate:"min=1"`
	FirstDelay         time.Duration `koanf:"firstdelay" json:"firstdelay" yaml:"firstdelay" mapstructure:"firstdelay" validate:"min=0"`
	BackoffExponent    float64       `koanf:"backoffexponent" json:"backoffexponent" yaml:"backoffexponent" mapstructure:"backoffexponent" validate:"gte=0"`
	MaxAttempts        int           `koanf:"maxattempts" json:"maxattempts" yaml:"maxattempts" mapstructure:"maxattempts" validate:"min=1"`
	RetryStatusCodes   []int         `koanf:"retrystatuscodes" json:"retrystatuscodes" yaml:"retrystatuscodes" mapstructure:"retrystatuscodes" validate:"dive,min=100,max=599"`
	StopStatusCodes    []int         `koanf:"stopstatuscodes" json:"stopstatuscodes" yaml:"stopstatuscodes" mapstructure:"stopstatuscodes" validate:"dive,min=100,max=599"`
	RetryCategories    []string      `koanf:"retrycategories" json:"retrycategories" yaml:"retrycategories" mapstructure:"retrycategories"`
	StopCategories     []string      `koanf:"stopcategories" json:"stopcategories" yaml:"stopcategories" mapstructure:"stopcategories"`
	Backoff            string        `koanf:"backoff" json:"backoff" yaml:"backoff" mapstructure:"backoff" validate:"omitempty,oneof=exponential constant"`
	Limiter            string        `koanf:"limiter" json:"limiter" yaml:"limiter" mapstructure:"limiter" validate:"omitempty,oneof=queue bucket"`
}

// DefaultConfig returns the defaults: 10 calls/s, 10 in flight, 5 attempts,
// exponential backoff from 500ms with exponent 2 and the token-queue limiter.
func DefaultConfig() Config {
	return Config{
		RateLimitPerSecond: DefaultRateLimitPerSecond,
		ConcurrencyLimit:   DefaultConcurrencyLimit,
		FirstDelay:         retry.DefaultFirstDelay,
		BackoffExponent:    retry.DefaultExponent,
		MaxAttempts:        retry.DefaultMaxAttempts,
		Backoff:            BackoffExponential,
		Limiter:            LimiterQueue,
	}
}

// Validate checks the values that would make construction fail.
func (c Config) Validate() error {
	if c.RateLimitPerSecond < 1 {
		return fmt.Errorf("%w: rate limit must be a positive number, got %d", ratelimit.ErrInvalidConfiguration, c.RateLimitPerSecond)
	}
	if c.ConcurrencyLimit < 1 {
		return fmt.Errorf("%w: concurrency limit must be a positive number, got %d", ratelimit.ErrInvalidConfiguration, c.ConcurrencyLimit)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", retry.ErrInvalidRules, c.MaxAttempts)
	}
	if c.FirstDelay < 0 {
		return fmt.Errorf("%w: first delay cannot be negative", retry.ErrInvalidRules)
	}
	switch c.Backoff {
	case "", BackoffExponential, BackoffConstant:
	default:
		return fmt.Errorf("%w: unknown backoff %q", retry.ErrInvalidRules, c.Backoff)
	}
	switch c.Limiter {
	case "", LimiterQueue, LimiterBucket:
	default:
		return fmt.Errorf("%w: unknown limiter %q", ratelimit.ErrInvalidConfiguration, c.Limiter)
	}
	if _, err := parseCategories(c.RetryCategories); err != nil {
		return err
	}
	_, err := parseCategories(c.StopCategories)
	return err
}

// Rules converts the configuration into retry rules.
func (c Config) Rules() (retry.Rules, error) {
	retryCategories, err := parseCategories(c.RetryCategories)
	if err != nil {
		return retry.Rules{}, err
	}
	stopCategories, err := parseCategories(c.StopCategories)
	if err != nil {
		return retry.Rules{}, err
	}
	return retry.Rules{
		RetryStatusCodes: c.RetryStatusCodes,
		StopStatusCodes:  c.StopStatusCodes,
		RetryCategories:  retryCategories,
		StopCategories:   stopCategories,
		MaxAttempts:      c.MaxAttempts,
	}.WithDefaults(), nil
}

// BackoffPolicy returns the configured policy.
func (c Config) BackoffPolicy() retry.BackoffPolicy {
	if c.Backoff == BackoffConstant {
		return retry.Constant{Wait: c.FirstDelay}
	}
	return retry.Exponential{First: c.FirstDelay, Exponent: c.BackoffExponent}
}

// NewLimiter builds the configured limiter.
func (c Config) NewLimiter(name string, log logger.Logger) (ratelimit.Limiter, error) {
	opts := []ratelimit.Option{ratelimit.WithName(name), ratelimit.WithLogger(log)}
	if c.Limiter == LimiterBucket {
		bucket, err := ratelimit.NewBucket(c.RateLimitPerSecond, c.ConcurrencyLimit, opts...)
		if err != nil {
			return nil, err
		}
		return bucket, nil
	}
	queue, err := ratelimit.New(c.RateLimitPerSecond, c.ConcurrencyLimit, opts...)
	if err != nil {
		return nil, err
	}
	return queue, nil
}

func parseCategories(names []string) ([]retry.Category, error) {
	if names == nil {
		return nil, nil
	}
	out := make([]retry.Category, 0, len(names))
	for _, name := range names {
		c, err := retry.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
