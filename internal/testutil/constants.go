// Package testutil provides shared constants and fakes for tests across the module.
package testutil

const (
	// TestError is a generic error message for test error scenarios.
	TestError = "test error"

	// TestConnectionRefused is the common network error message for connection failures.
	TestConnectionRefused = "connection refused"
)

const (
	// TestDomain is the API domain used by request fixtures.
	TestDomain = "https://api.example.com"

	// TestResource is the resource path used by request fixtures.
	TestResource = "v1/orders"

	// TestURL is TestDomain joined with TestResource.
	TestURL = TestDomain + "/" + TestResource
)

const (
	// TestAPIKeyHeader is the header a signer adds in tests.
	TestAPIKeyHeader = "X-Api-Key"

	// TestAPIKey is a throwaway credential value.
	TestAPIKey = "test-key"
)
