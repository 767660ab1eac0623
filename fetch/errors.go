package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/intenvy/down-to-earth/httpclient"
)

// FailedError is returned by Fetch when an outcome is classified as fatal or the
// attempt budget runs out.
type FailedError struct {
	Reason     string
	StatusCode int
	Err        error
	// Attempts is the number of physical sends made.
	Attempts int
	// Response is the last response received, if any.
	Response *httpclient.Response
}

func (e *FailedError) Error() string {
	var b strings.Builder
	b.WriteString("fetch failed: ")
	b.WriteString(e.Reason)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// AsMap renders the failure as {message, response_status_code?, exception?}.
func (e *FailedError) AsMap() map[string]any {
	out := map[string]any{"message": e.Reason}
	if e.StatusCode != 0 {
		out["response_status_code"] = e.StatusCode
	}
	if e.Err != nil {
		out["exception"] = strings.ReplaceAll(strings.TrimSpace(e.Err.Error()), "\n", " ")
	}
	return out
}

// MarshalJSON implements json.Marshaler using AsMap.
func (e *FailedError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.AsMap())
}

// IsFailed reports whether err is (or wraps) a *FailedError and returns it.
func IsFailed(err error) (*FailedError, bool) {
	var failed *FailedError
	if errors.As(err, &failed) {
		return failed, true
	}
	return nil, false
}

// IsCancellation reports whether err comes from the caller's context rather than
// from a classified outcome.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := IsFailed(err); ok {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
