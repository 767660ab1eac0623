// Package httpclient is the transport layer of the fetch stack.
//
// A Transport performs exactly one physical HTTP call and reports either a
// Response (any status code) or a categorized *TransportError. It never retries;
// retry decisions belong to the fetch package.
//
// Session modes
//   - Session-based (default): one connection pool is shared by every call and
//     released by Close.
//   - Session-less (Builder.WithoutSession): keep-alives are disabled and every
//     call dials a fresh connection.
//
// Decorators
//   - RateLimited wraps any Transport so each Send runs inside a ratelimit.Limiter.
//     Only the send is wrapped, so the concurrency slot is free while the caller
//     backs off between attempts.
//
// Error categories
//   - Timeouts (per-request deadline or net.Error timeout) map to retry.Timeout.
//   - Refused, reset or aborted connections map to retry.ConnectionReset.
//   - Handshake and certificate failures map to retry.TLS.
//   - Failures to reach a proxy map to retry.Proxy.
//   - Exceeding the redirect limit maps to retry.TooManyRedirects.
//   - A non-JSON body passed to DecodeJSON maps to retry.ContentType.
package httpclient
