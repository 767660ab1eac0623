package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/intenvy/down-to-earth/fetch"
	"github.com/intenvy/down-to-earth/httpclient"
	"github.com/intenvy/down-to-earth/logger"
)

// ErrNoSigner is returned by Call when a signed call is made on a client without a Signer.
var ErrNoSigner = errors.New("client: signed call requires a signer")

// Fetcher runs the attempt loop for one logical request. *fetch.Mechanism implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error)
	Close() error
}

var _ Fetcher = (*fetch.Mechanism)(nil)

// Signer adds authentication to a request. It receives a copy it may modify.
type Signer interface {
	Sign(ctx context.Context, req *httpclient.Request) (*httpclient.Request, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, req *httpclient.Request) (*httpclient.Request, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ctx context.Context, req *httpclient.Request) (*httpclient.Request, error) {
	return f(ctx, req)
}

// ResponseHook is called with every successful response.
type ResponseHook func(ctx context.Context, req *httpclient.Request, resp *httpclient.Response)

// FailureHook is called when the fetch mechanism gives up on a request.
type FailureHook func(ctx context.Context, req *httpclient.Request, failure *fetch.FailedError)

// Result is a decoded response.
type Result struct {
	StatusCode int
	Headers    http.Header
	// Body is the decoded JSON body, {"raw": text} for non-JSON bodies, or nil when empty.
	Body any
}

// RestClient calls one API through a Fetcher.
type RestClient struct {
	fetcher    Fetcher
	signer     Signer
	onResponse ResponseHook
	onFailure  FailureHook
	log        logger.Logger
}

// Option configures a RestClient.
type Option func(*RestClient)

// WithSigner sets the signer used for signed calls.
func WithSigner(s Signer) Option {
	return func(c *RestClient) {
		c.signer = s
	}
}

// WithResponseHook sets the hook called on success.
func WithResponseHook(h ResponseHook) Option {
	return func(c *RestClient) {
		c.onResponse = h
	}
}

// WithFailureHook sets the hook called when fetching fails.
func WithFailureHook(h FailureHook) Option {
	return func(c *RestClient) {
		c.onFailure = h
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *RestClient) {
		if log != nil {
			c.log = log
		}
	}
}

// NewRestClient creates a RestClient fetching through f.
func NewRestClient(f Fetcher, opts ...Option) *RestClient {
	c := &RestClient{fetcher: f, log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call signs req when signed is true, fetches it and decodes the response.
// Failures are returned as the *fetch.FailedError or context error from the fetcher.
func (c *RestClient) Call(ctx context.Context, req *httpclient.Request, signed bool) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", httpclient.ErrInvalidRequest)
	}
	if signed {
		if c.signer == nil {
			return nil, ErrNoSigner
		}
		var err error
		if req, err = c.signer.Sign(ctx, req.Clone()); err != nil {
			return nil, err
		}
	}

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		if failure, ok := fetch.IsFailed(err); ok {
			c.log.Error().
				Interface("request", req.AsMap()).
				Interface("failure", failure.AsMap()).
				Msg("REST call failed")
			if c.onFailure != nil {
				c.onFailure(ctx, req, failure)
			}
		}
		return nil, err
	}

	c.log.Debug().
		Str("method", string(req.Method)).
		Str("url", req.URL()).
		Int("status", resp.StatusCode).
		Msg("REST call succeeded")
	if c.onResponse != nil {
		c.onResponse(ctx, req, resp)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Decode(),
	}, nil
}

// Close closes the underlying fetcher.
func (c *RestClient) Close() error {
	return c.fetcher.Close()
}
