package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/intenvy/down-to-earth/httpclient"
)

// ErrUnknownDomain is returned for a request whose domain has no registered client.
var ErrUnknownDomain = errors.New("client: no client registered for domain")

// Engine routes requests to the RestClient registered for their domain.
type Engine struct {
	clients map[string]*RestClient
}

// NewEngine creates an Engine from a domain to client mapping. The map is copied.
func NewEngine(clients map[string]*RestClient) *Engine {
	return &Engine{clients: maps.Clone(clients)}
}

// Domains returns the registered domains, sorted.
func (e *Engine) Domains() []string {
	return slices.Sorted(maps.Keys(e.clients))
}

// Fetch calls req through the client registered for req.Domain.
func (e *Engine) Fetch(ctx context.Context, req *httpclient.Request, signed bool) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", httpclient.ErrInvalidRequest)
	}
	c, ok := e.clients[req.Domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, req.Domain)
	}
	return c.Call(ctx, req, signed)
}

// FetchAll runs every request concurrently and returns the results in request order.
// The first failure cancels the requests still in progress and is returned.
func (e *Engine) FetchAll(ctx context.Context, reqs []*httpclient.Request, signed bool) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Fetch(gctx, req, signed)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close closes every client and joins their errors.
func (e *Engine) Close() error {
	var errs []error
	for _, domain := range e.Domains() {
		if err := e.clients[domain].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", domain, err))
		}
	}
	return errors.Join(errs...)
}
