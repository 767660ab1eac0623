package retry

import (
	"errors"
	"slices"
)

// ErrInvalidRules is returned when a rule set cannot be used.
var ErrInvalidRules = errors.New("invalid retry rules")

// DefaultMaxAttempts is the attempt budget used when none is configured.
const DefaultMaxAttempts = 5

// Rules lists which status codes and error categories are retried or stop immediately,
// and how many physical attempts one logical request may make.
type Rules struct {
	RetryStatusCodes []int
	StopStatusCodes  []int
	RetryCategories  []Category
	StopCategories   []Category
	MaxAttempts      int
}

// DefaultRetryStatusCodes returns the server errors worth retrying.
func DefaultRetryStatusCodes() []int {
	return []int{500, 502, 503, 504}
}

// DefaultStopStatusCodes returns the status codes that can never succeed on retry.
func DefaultStopStatusCodes() []int {
	return []int{400, 401, 402, 403, 404, 405, 406, 407, 409, 410, 411, 412, 413, 415, 501, 505, 507, 508, 510, 511}
}

// DefaultRetryCategories returns the error categories worth retrying.
func DefaultRetryCategories() []Category {
	return []Category{Timeout}
}

// DefaultStopCategories returns the error categories that stop immediately.
func DefaultStopCategories() []Category {
	return []Category{ConnectionReset, TLS, Proxy, ContentType, TooManyRedirects}
}

// DefaultRules returns the default rule set with the given attempt budget.
func DefaultRules(maxAttempts int) Rules {
	return Rules{
		RetryStatusCodes: DefaultRetryStatusCodes(),
		StopStatusCodes:  DefaultStopStatusCodes(),
		RetryCategories:  DefaultRetryCategories(),
		StopCategories:   DefaultStopCategories(),
		MaxAttempts:      maxAttempts,
	}
}

// WithDefaults fills nil lists with their defaults. An explicitly empty list stays empty.
func (r Rules) WithDefaults() Rules {
	if r.RetryStatusCodes == nil {
		r.RetryStatusCodes = DefaultRetryStatusCodes()
	}
	if r.StopStatusCodes == nil {
		r.StopStatusCodes = DefaultStopStatusCodes()
	}
	if r.RetryCategories == nil {
		r.RetryCategories = DefaultRetryCategories()
	}
	if r.StopCategories == nil {
		r.StopCategories = DefaultStopCategories()
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	return r
}

func (r Rules) clone() Rules {
	return Rules{
		RetryStatusCodes: slices.Clone(r.RetryStatusCodes),
		StopStatusCodes:  slices.Clone(r.StopStatusCodes),
		RetryCategories:  slices.Clone(r.RetryCategories),
		StopCategories:   slices.Clone(r.StopCategories),
		MaxAttempts:      r.MaxAttempts,
	}
}
