// Package fetch drives one logical request through repeated physical attempts.
//
// Each attempt goes through a Transport (normally rate-limited), its outcome is
// classified by a retry.Classifier, and retryable outcomes wait for the delay
// computed by a retry.BackoffPolicy before the next attempt. All attempts of one
// logical request share the same X-Request-ID.
package fetch
