// Package retry decides what happens after each physical attempt of a request.
//
// A Classifier turns an Outcome (the status code received, or the transport error
// raised) into a Result: Success, Retry or Fatal. A BackoffPolicy computes how long
// to wait before the next attempt. Both are pure functions of their inputs, so the
// fetch loop can be tested against them without a network.
package retry
