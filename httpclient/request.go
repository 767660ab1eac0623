package httpclient

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the per-request timeout used when a request does not set one.
const DefaultTimeout = 30 * time.Second

// Method is an HTTP method supported by the client.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	}
	return false
}

// ParseMethod converts a case-insensitive method name into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, s)
	}
	return m, nil
}

// Request identifies one logical call. It carries no attempt state and is not
// modified by sending it, so the same value can be sent any number of times.
type Request struct {
	Method   Method
	Domain   string
	Resource string
	// Data is encoded as the JSON body when Body is nil.
	Data map[string]any
	// Body is sent as-is when set.
	Body    []byte
	Headers map[string]string
	Params  map[string]string
	// Timeout bounds one physical attempt. Zero means the transport default.
	Timeout time.Duration
}

// RequestOption configures a Request built by NewRequest.
type RequestOption func(*Request)

// WithData sets the JSON body. Nil values are dropped.
func WithData(data map[string]any) RequestOption {
	return func(r *Request) {
		r.Data = dropNil(data)
	}
}

// WithBody sets a raw body that is sent unchanged.
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		r.Body = body
	}
}

// WithHeaders sets the headers. Nil values are dropped and the rest are stringified.
func WithHeaders(headers map[string]any) RequestOption {
	return func(r *Request) {
		r.Headers = CleanParams(headers)
	}
}

// WithParams sets the query parameters. Nil values are dropped and the rest are stringified.
func WithParams(params map[string]any) RequestOption {
	return func(r *Request) {
		r.Params = CleanParams(params)
	}
}

// WithRequestTimeout sets the per-attempt timeout.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = d
	}
}

// NewRequest builds a Request for domain/resource.
func NewRequest(method Method, domain, resource string, opts ...RequestOption) *Request {
	r := &Request{
		Method:   method,
		Domain:   domain,
		Resource: resource,
		Timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URL returns domain + "/" + resource.
func (r *Request) URL() string {
	return r.Domain + "/" + r.Resource
}

// FullURL returns URL with the query parameters encoded.
func (r *Request) FullURL() (string, error) {
	u, err := url.Parse(r.URL())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(r.Params) > 0 {
		q := u.Query()
		for k, v := range r.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Validate checks that the request can be sent.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}
	if !r.Method.Valid() {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, r.Method)
	}
	if r.Domain == "" {
		return fmt.Errorf("%w: domain cannot be empty", ErrInvalidRequest)
	}
	return nil
}

// Clone returns a deep copy whose maps can be changed without touching r.
func (r *Request) Clone() *Request {
	c := *r
	c.Data = maps.Clone(r.Data)
	c.Headers = maps.Clone(r.Headers)
	c.Params = maps.Clone(r.Params)
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// WithHeader returns a copy of r with one header set.
func (r *Request) WithHeader(key, value string) *Request {
	c := r.Clone()
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	c.Headers[key] = value
	return c
}

// AsMap renders the request for logs and error reports.
func (r *Request) AsMap() map[string]any {
	return map[string]any{
		"url":     r.URL(),
		"method":  string(r.Method),
		"data":    r.Data,
		"headers": r.Headers,
		"params":  r.Params,
	}
}

// CleanParams drops nil values and stringifies the rest.
func CleanParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func dropNil(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
