package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/intenvy/down-to-earth/retry"
)

var (
	// ErrInvalidRequest is returned before sending for a request that cannot be built.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTooManyRedirects is returned when a response chain exceeds the redirect limit.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// TransportError is a failed physical call tagged with its retry.Category.
type TransportError struct {
	category retry.Category
	message  string
	wrapped  error
}

// NewTransportError creates a TransportError.
func NewTransportError(category retry.Category, message string, err error) *TransportError {
	return &TransportError{category: category, message: message, wrapped: err}
}

func (e *TransportError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s error: %s: %v", e.category, e.message, e.wrapped)
	}
	return fmt.Sprintf("%s error: %s", e.category, e.message)
}

// Category implements retry.Categorized.
func (e *TransportError) Category() retry.Category {
	return e.category
}

func (e *TransportError) Unwrap() error {
	return e.wrapped
}

// IsCategory reports whether any error in the chain has category c.
func IsCategory(err error, c retry.Category) bool {
	var categorized retry.Categorized
	return errors.As(err, &categorized) && categorized.Category() == c
}

// IsSuccessStatus checks if the HTTP status code indicates success
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// categorize wraps a net/http error into a TransportError.
func categorize(message string, err error) *TransportError {
	return NewTransportError(categoryOf(err), message, err)
}

func categoryOf(err error) retry.Category {
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return retry.TooManyRedirects
	case isTimeout(err):
		return retry.Timeout
	case isProxy(err):
		return retry.Proxy
	case isTLS(err):
		return retry.TLS
	case isConnection(err):
		return retry.ConnectionReset
	default:
		return retry.Unknown
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isProxy(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "proxyconnect"
}

func isTLS(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		alertErr    tls.AlertError
		authority   x509.UnknownAuthorityError
		hostname    x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalidCert)
}

func isConnection(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
