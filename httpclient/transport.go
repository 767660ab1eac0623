package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/intenvy/down-to-earth/ratelimit"
	"github.com/intenvy/down-to-earth/trace"
)

// Transport performs exactly one physical HTTP call per Send.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

type rateLimited struct {
	next    Transport
	limiter ratelimit.Limiter

	closeOnce sync.Once
	closeErr  error
}

// RateLimited returns a Transport that runs every Send of next inside limiter.
// Close closes next and then the limiter, once.
func RateLimited(next Transport, limiter ratelimit.Limiter) Transport {
	return &rateLimited{next: next, limiter: limiter}
}

func (t *rateLimited) Send(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	err := t.limiter.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		resp, sendErr = t.next.Send(ctx, req)
		return sendErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *rateLimited) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = errors.Join(t.next.Close(), t.limiter.Close())
	})
	return t.closeErr
}

// NewTraceIDInterceptor creates a request interceptor that fills X-Request-ID from
// the context when neither the caller nor Send already set it.
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(trace.HeaderXRequestID)
}

// NewTraceIDInterceptorFor creates an interceptor that copies the request ID into a custom header
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = trace.HeaderXRequestID
	}
	return func(ctx context.Context, req *http.Request) error {
		if req.Header.Get(header) != "" {
			return nil
		}
		if id := req.Header.Get(trace.HeaderXRequestID); id != "" {
			req.Header.Set(header, id)
			return nil
		}
		_, id := trace.EnsureRequestID(ctx)
		req.Header.Set(header, id)
		return nil
	}
}
