package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intenvy/down-to-earth/fetch"
	"github.com/intenvy/down-to-earth/httpclient"
	"github.com/intenvy/down-to-earth/httpclient/httpclienttest"
	"github.com/intenvy/down-to-earth/internal/testutil"
	"github.com/intenvy/down-to-earth/retry"
)

func noSleep(context.Context, time.Duration) error {
	return nil
}

func newMechanism(t *testing.T, steps ...httpclienttest.Step) (*fetch.Mechanism, *httpclienttest.ScriptedTransport) {
	t.Helper()
	scripted := httpclienttest.New(steps...)
	m, err := fetch.New(scripted, fetch.WithSleep(noSleep))
	require.NoError(t, err)
	return m, scripted
}

func newRequest() *httpclient.Request {
	return httpclient.NewRequest(httpclient.MethodGet, testutil.TestDomain, testutil.TestResource)
}

func TestCallDecodesResponse(t *testing.T) {
	tests := []struct {
		name         string
		step         httpclienttest.Step
		expectedBody any
	}{
		{name: "json", step: httpclienttest.JSON(http.StatusOK, `{"a":[1,2]}`), expectedBody: map[string]any{"a": []any{float64(1), float64(2)}}},
		{name: "raw text", step: httpclienttest.Step{Status: http.StatusOK, Body: []byte("pong")}, expectedBody: map[string]any{"raw": "pong"}},
		{name: "empty", step: httpclienttest.Status(http.StatusNoContent), expectedBody: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newMechanism(t, tt.step)
			c := NewRestClient(m)

			res, err := c.Call(context.Background(), newRequest(), false)
			require.NoError(t, err)
			assert.Equal(t, tt.step.Status, res.StatusCode)
			assert.Equal(t, tt.expectedBody, res.Body)
		})
	}
}

func TestCallHooks(t *testing.T) {
	t.Run("response hook", func(t *testing.T) {
		m, _ := newMechanism(t, httpclienttest.Status(http.StatusOK))
		var seen *httpclient.Response
		c := NewRestClient(m, WithResponseHook(func(_ context.Context, _ *httpclient.Request, resp *httpclient.Response) {
			seen = resp
		}))

		_, err := c.Call(context.Background(), newRequest(), false)
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, http.StatusOK, seen.StatusCode)
	})

	t.Run("failure hook and log", func(t *testing.T) {
		m, _ := newMechanism(t, httpclienttest.Status(http.StatusForbidden))
		fake := testutil.NewFakeLogger()
		var seen *fetch.FailedError
		c := NewRestClient(m, WithLogger(fake), WithFailureHook(func(_ context.Context, _ *httpclient.Request, failure *fetch.FailedError) {
			seen = failure
		}))

		res, err := c.Call(context.Background(), newRequest(), false)
		assert.Nil(t, res)
		failure, ok := fetch.IsFailed(err)
		require.True(t, ok)
		assert.Same(t, failure, seen)
		assert.Equal(t, retry.ReasonStopStatus, failure.Reason)

		events := fake.EventsByMessage("REST call failed")
		require.Len(t, events, 1)
		assert.Equal(t, failure.AsMap(), events[0].Fields["failure"])
	})

	t.Run("cancellation skips failure hook", func(t *testing.T) {
		m, _ := newMechanism(t, httpclienttest.Status(http.StatusOK))
		called := false
		c := NewRestClient(m, WithFailureHook(func(context.Context, *httpclient.Request, *fetch.FailedError) { called = true }))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Call(ctx, newRequest(), false)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestCallSigned(t *testing.T) {
	t.Run("signer result is sent and caller request untouched", func(t *testing.T) {
		m, scripted := newMechanism(t, httpclienttest.Status(http.StatusOK))
		c := NewRestClient(m, WithSigner(SignerFunc(func(_ context.Context, req *httpclient.Request) (*httpclient.Request, error) {
			return req.WithHeader(testutil.TestAPIKeyHeader, testutil.TestAPIKey), nil
		})))

		req := newRequest()
		_, err := c.Call(context.Background(), req, true)
		require.NoError(t, err)

		sent := scripted.Requests()
		require.Len(t, sent, 1)
		assert.Equal(t, testutil.TestAPIKey, sent[0].Headers[testutil.TestAPIKeyHeader])
		assert.Empty(t, req.Headers)
	})

	t.Run("unsigned call skips signer", func(t *testing.T) {
		m, _ := newMechanism(t, httpclienttest.Status(http.StatusOK))
		c := NewRestClient(m, WithSigner(SignerFunc(func(context.Context, *httpclient.Request) (*httpclient.Request, error) {
			return nil, errors.New(testutil.TestError)
		})))

		_, err := c.Call(context.Background(), newRequest(), false)
		assert.NoError(t, err)
	})

	t.Run("signer error", func(t *testing.T) {
		m, scripted := newMechanism(t, httpclienttest.Status(http.StatusOK))
		c := NewRestClient(m, WithSigner(SignerFunc(func(context.Context, *httpclient.Request) (*httpclient.Request, error) {
			return nil, errors.New(testutil.TestError)
		})))

		_, err := c.Call(context.Background(), newRequest(), true)
		assert.EqualError(t, err, testutil.TestError)
		assert.Equal(t, 0, scripted.Calls())
	})

	t.Run("no signer", func(t *testing.T) {
		m, _ := newMechanism(t)
		_, err := NewRestClient(m).Call(context.Background(), newRequest(), true)
		assert.ErrorIs(t, err, ErrNoSigner)
	})
}

func TestCallNilRequest(t *testing.T) {
	for _, signed := range []bool{false, true} {
		m, scripted := newMechanism(t, httpclienttest.Status(http.StatusOK))
		signerCalled := false
		c := NewRestClient(m, WithSigner(SignerFunc(func(_ context.Context, req *httpclient.Request) (*httpclient.Request, error) {
			signerCalled = true
			return req, nil
		})))

		res, err := c.Call(context.Background(), nil, signed)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, httpclient.ErrInvalidRequest)
		assert.False(t, signerCalled)
		assert.Equal(t, 0, scripted.Calls())
	}
}

func TestRestClientClose(t *testing.T) {
	m, scripted := newMechanism(t)
	c := NewRestClient(m)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, scripted.Closed())
}
