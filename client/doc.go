// Package client exposes the fetch stack as API clients.
//
// A RestClient wraps one fetch.Mechanism, optionally signs requests and turns
// responses into decoded Results. An Engine routes requests to the RestClient
// registered for their domain.
package client
