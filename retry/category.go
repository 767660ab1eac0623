package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category groups transport errors by the kind of failure they represent.
type Category string

const (
	Timeout          Category = "timeout"
	ConnectionReset  Category = "connection-reset"
	TLS              Category = "tls"
	Proxy            Category = "proxy"
	ContentType      Category = "content-type"
	TooManyRedirects Category = "too-many-redirects"
	Unknown          Category = "unknown"
)

// ErrUnknownCategory is returned by ParseCategory for names outside the known set.
var ErrUnknownCategory = errors.New("unknown error category")

// Categorized is implemented by errors that know their own category.
type Categorized interface {
	Category() Category
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a configuration value into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Timeout, ConnectionReset, TLS, Proxy, ContentType, TooManyRedirects, Unknown:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// CategoryOf returns the category of the first error in the chain that declares one.
// Deadline errors and errors reporting Timeout() are timeouts; anything else is Unknown.
func CategoryOf(err error) Category {
	if err == nil {
		return Unknown
	}
	var c Categorized
	if errors.As(err, &c) {
		return c.Category()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return Timeout
	}
	return Unknown
}
