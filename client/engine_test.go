package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intenvy/down-to-earth/httpclient"
	"github.com/intenvy/down-to-earth/httpclient/httpclienttest"
	"github.com/intenvy/down-to-earth/internal/testutil"
)

const otherDomain = "https://other.example.com"

// failingFetcher fails every Close.
type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, *httpclient.Request) (*httpclient.Response, error) {
	return nil, errors.New(testutil.TestError)
}

func (failingFetcher) Close() error {
	return errors.New(testutil.TestError)
}

func TestEngineRoutesByDomain(t *testing.T) {
	primary, primaryTransport := newMechanism(t, httpclienttest.JSON(http.StatusOK, `{"from":"primary"}`))
	other, otherTransport := newMechanism(t, httpclienttest.JSON(http.StatusOK, `{"from":"other"}`))
	engine := NewEngine(map[string]*RestClient{
		testutil.TestDomain: NewRestClient(primary),
		otherDomain:         NewRestClient(other),
	})

	res, err := engine.Fetch(context.Background(), httpclient.NewRequest(httpclient.MethodGet, otherDomain, "x"), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"from": "other"}, res.Body)
	assert.Equal(t, 0, primaryTransport.Calls())
	assert.Equal(t, 1, otherTransport.Calls())
	assert.Equal(t, []string{testutil.TestDomain, otherDomain}, engine.Domains())
}

func TestEngineUnknownDomain(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.Fetch(context.Background(), newRequest(), false)
	assert.ErrorIs(t, err, ErrUnknownDomain)

	_, err = engine.Fetch(context.Background(), nil, false)
	assert.ErrorIs(t, err, httpclient.ErrInvalidRequest)
}

func TestEngineFetchAll(t *testing.T) {
	primary, transport := newMechanism(t, httpclienttest.Status(http.StatusOK))
	engine := NewEngine(map[string]*RestClient{testutil.TestDomain: NewRestClient(primary)})

	reqs := make([]*httpclient.Request, 5)
	for i := range reqs {
		reqs[i] = newRequest()
	}

	results, err := engine.FetchAll(context.Background(), reqs, false)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, res := range results {
		assert.Equal(t, http.StatusOK, res.StatusCode)
	}
	assert.Equal(t, 5, transport.Calls())
}

func TestEngineFetchAllFailure(t *testing.T) {
	primary, _ := newMechanism(t, httpclienttest.Status(http.StatusOK))
	engine := NewEngine(map[string]*RestClient{testutil.TestDomain: NewRestClient(primary)})

	reqs := []*httpclient.Request{newRequest(), httpclient.NewRequest(httpclient.MethodGet, otherDomain, "x")}
	results, err := engine.FetchAll(context.Background(), reqs, false)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestEngineClose(t *testing.T) {
	good, goodTransport := newMechanism(t)
	engine := NewEngine(map[string]*RestClient{
		testutil.TestDomain: NewRestClient(good),
		otherDomain:         NewRestClient(failingFetcher{}),
	})

	err := engine.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close "+otherDomain)
	assert.Equal(t, 1, goodTransport.Closed())
}

