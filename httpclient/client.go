package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/intenvy/down-to-earth/logger"
	"github.com/intenvy/down-to-earth/retry"
	"github.com/intenvy/down-to-earth/trace"
)

const (
	// DefaultMaxRedirects is the redirect limit used when none is configured.
	DefaultMaxRedirects = 10

	// DefaultMaxPayloadLogBytes caps logged body previews when LogPayloads is on.
	DefaultMaxPayloadLogBytes = 1024
)

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *http.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *http.Request, resp *http.Response) error

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Config holds the HTTP transport configuration
type Config struct {
	// Timeout is the per-attempt timeout for requests that do not set their own
	Timeout              time.Duration
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	// Session shares one connection pool across calls; false dials a fresh connection each time
	Session      bool
	// MaxRedirects caps followed redirects. Zero means DefaultMaxRedirects here;
	// a negative value returns the first redirect response instead of following it.
	MaxRedirects int
	TLSConfig    *tls.Config
	// Tracing wraps the transport with otelhttp client spans
	Tracing bool
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
}

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
		Session:              true,
		MaxRedirects:         DefaultMaxRedirects,
		MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
	}
}

// client is the net/http Transport.
type client struct {
	httpClient *http.Client
	base       *http.Transport
	logger     logger.Logger
	config     *Config
	callCount  int64

	closeOnce sync.Once
}

var _ Transport = (*client)(nil)

// NewClient creates a session-based Transport with default configuration
func NewClient(log logger.Logger) Transport {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the transport
type Builder struct {
	config *Config
	logger logger.Logger
}

// NewBuilder creates a new transport builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{config: defaultConfig(), logger: log}
}

// WithConfig replaces the whole configuration. Zero values fall back to defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	c := cfg
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.DefaultHeaders == nil {
		c.DefaultHeaders = make(map[string]string)
	}
	b.config = &c
	return b
}

// WithTimeout sets the default per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithoutSession disables keep-alives so every call uses a fresh connection.
func (b *Builder) WithoutSession() *Builder {
	b.config.Session = false
	return b
}

// WithMaxRedirects sets how many redirects are followed before ErrTooManyRedirects.
// Zero fails on the first redirect; a negative value returns the redirect response itself.
func (b *Builder) WithMaxRedirects(n int) *Builder {
	b.config.MaxRedirects = n
	return b
}

// WithTLSConfig sets the TLS configuration used for https calls.
func (b *Builder) WithTLSConfig(cfg *tls.Config) *Builder {
	b.config.TLSConfig = cfg
	return b
}

// WithTracing wraps the transport with otelhttp so each attempt gets a client span.
func (b *Builder) WithTracing() *Builder {
	b.config.Tracing = true
	return b
}

// WithLogPayloads enables debug logging of headers and at most maxBytes of each body.
func (b *Builder) WithLogPayloads(maxBytes int) *Builder {
	b.config.LogPayloads = true
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// Build creates the Transport with the configured options
func (b *Builder) Build() Transport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DisableKeepAlives = !b.config.Session
	if b.config.TLSConfig != nil {
		base.TLSClientConfig = b.config.TLSConfig.Clone()
	}

	var rt http.RoundTripper = base
	if b.config.Tracing {
		rt = otelhttp.NewTransport(base)
	}

	maxRedirects := b.config.MaxRedirects
	return &client{
		httpClient: &http.Client{
			Transport: rt,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if maxRedirects < 0 {
					return http.ErrUseLastResponse
				}
				if len(via) > maxRedirects {
					return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
				}
				return nil
			},
		},
		base:   base,
		logger: b.logger,
		config: b.config,
	}
}

// Send performs one physical call. Any status code is a Response; only failures
// to obtain one are errors.
func (c *client) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, body, requestID, err := c.buildRequest(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	c.logRequest(httpReq, body, requestID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, categorize("request execution failed", err)
	}

	resp, err := c.buildResponse(attemptCtx, start, callCount, httpReq, httpResp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	c.logResponse(resp, requestID)
	return resp, nil
}

// Close releases pooled connections. Repeated calls return nil.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		c.base.CloseIdleConnections()
	})
	return nil
}

// applyHeaders applies headers to the HTTP request
func (c *client) applyHeaders(httpReq *http.Request, req *Request, hasBody bool) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Request-specific headers override defaults
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get("Content-Type") == "" && hasBody {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if auth := c.config.BasicAuth; auth != nil && httpReq.Header.Get("Authorization") == "" {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// buildRequest constructs an *http.Request, applies headers, auth and trace headers,
// and runs request interceptors. It returns the encoded body and the request ID.
func (c *client) buildRequest(ctx context.Context, req *Request) (*http.Request, []byte, string, error) {
	target, err := req.FullURL()
	if err != nil {
		return nil, nil, "", err
	}

	payload := req.Body
	if payload == nil && req.Data != nil {
		payload, err = json.Marshal(req.Data)
		if err != nil {
			return nil, nil, "", fmt.Errorf("%w: encode data: %w", ErrInvalidRequest, err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), target, body)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	c.applyHeaders(httpReq, req, payload != nil)
	requestID := trace.InjectHeaders(ctx, httpReq.Header)

	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, nil, "", NewTransportError(retry.Unknown, "request interceptor failed", err)
		}
	}
	return httpReq, payload, requestID, nil
}

// buildResponse runs response interceptors, reads body, and builds a Response.
func (c *client) buildResponse(ctx context.Context, start time.Time, callCount int64, httpReq *http.Request, httpResp *http.Response) (*Response, error) {
	defer httpResp.Body.Close()

	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, NewTransportError(retry.Unknown, "response interceptor failed", err)
		}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, categorize("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
		},
	}, nil
}
