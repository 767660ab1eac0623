package httpclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDomain   = "https://api.example.com"
	testResource = "v1/orders"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest(MethodPost, testDomain, testResource,
		WithData(map[string]any{"qty": 2, "note": nil}),
		WithHeaders(map[string]any{"X-Nonce": 42, "X-Empty": nil}),
		WithParams(map[string]any{"symbol": "BTC", "limit": 10, "cursor": nil}),
	)

	assert.Equal(t, MethodPost, req.Method)
	assert.Equal(t, "https://api.example.com/v1/orders", req.URL())
	assert.Equal(t, DefaultTimeout, req.Timeout)
	assert.Equal(t, map[string]any{"qty": 2}, req.Data)
	assert.Equal(t, map[string]string{"X-Nonce": "42"}, req.Headers)
	assert.Equal(t, map[string]string{"symbol": "BTC", "limit": "10"}, req.Params)
}

func TestNewRequestWithoutOptionalMaps(t *testing.T) {
	req := NewRequest(MethodGet, testDomain, "status", WithRequestTimeout(5*time.Second))
	assert.Nil(t, req.Data)
	assert.Nil(t, req.Headers)
	assert.Nil(t, req.Params)
	assert.Equal(t, 5*time.Second, req.Timeout)
}

func TestFullURL(t *testing.T) {
	req := NewRequest(MethodGet, testDomain, testResource, WithParams(map[string]any{"b": 2, "a": "x y"}))
	full, err := req.FullURL()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1/orders?a=x+y&b=2", full)

	bad := NewRequest(MethodGet, "://bad", "x")
	_, err = bad.FullURL()
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr bool
	}{
		{name: "valid", req: NewRequest(MethodGet, testDomain, testResource)},
		{name: "nil", req: nil, wantErr: true},
		{name: "bad_method", req: NewRequest(Method("TRACE"), testDomain, testResource), wantErr: true},
		{name: "empty_domain", req: NewRequest(MethodGet, "", testResource), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" patch ")
	require.NoError(t, err)
	assert.Equal(t, MethodPatch, m)

	_, err = ParseMethod("CONNECT")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCloneAndWithHeaderLeaveOriginalUntouched(t *testing.T) {
	req := NewRequest(MethodPost, testDomain, testResource,
		WithHeaders(map[string]any{"A": "1"}),
		WithBody([]byte(`{}`)),
	)

	signed := req.WithHeader("X-Signature", "sig")
	assert.Equal(t, "sig", signed.Headers["X-Signature"])
	assert.NotContains(t, req.Headers, "X-Signature")

	clone := req.Clone()
	clone.Body[0] = '['
	assert.Equal(t, []byte(`{}`), req.Body)

	bare := NewRequest(MethodGet, testDomain, testResource).WithHeader("K", "V")
	assert.Equal(t, map[string]string{"K": "V"}, bare.Headers)
}

func TestAsMap(t *testing.T) {
	req := NewRequest(MethodGet, testDomain, testResource, WithParams(map[string]any{"a": 1}))
	m := req.AsMap()
	assert.Equal(t, "https://api.example.com/v1/orders", m["url"])
	assert.Equal(t, "GET", m["method"])
	assert.Equal(t, map[string]string{"a": "1"}, m["params"])
}

func TestCleanParams(t *testing.T) {
	assert.Nil(t, CleanParams(nil))
	assert.Equal(t, map[string]string{"f": "1.5", "b": "true"}, CleanParams(map[string]any{"f": 1.5, "b": true, "n": nil}))
}
