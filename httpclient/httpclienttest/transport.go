// Package httpclienttest provides a scripted httpclient.Transport for tests of the
// layers above the network.
package httpclienttest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/intenvy/down-to-earth/httpclient"
)

// Step is the scripted result of one Send.
type Step struct {
	Status  int
	Body    []byte
	Headers http.Header
	Err     error
	// Delay is waited (context-aware) before the step is returned.
	Delay time.Duration
}

// Status returns a step answering with code and an empty body.
func Status(code int) Step {
	return Step{Status: code}
}

// JSON returns a step answering with code and a JSON body.
func JSON(code int, body string) Step {
	return Step{
		Status:  code,
		Body:    []byte(body),
		Headers: http.Header{"Content-Type": {"application/json"}},
	}
}

// Fail returns a step failing with err.
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedTransport replays steps in order. Once the script is exhausted the last
// step repeats.
type ScriptedTransport struct {
	mu       sync.Mutex
	steps    []Step
	requests []*httpclient.Request
	sentAt   []time.Time
	closed   int
}

var _ httpclient.Transport = (*ScriptedTransport)(nil)

// New creates a ScriptedTransport.
func New(steps ...Step) *ScriptedTransport {
	return &ScriptedTransport{steps: steps}
}

// Send implements httpclient.Transport.
func (s *ScriptedTransport) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	s.sentAt = append(s.sentAt, time.Now())
	var step Step
	if len(s.steps) > 0 {
		step = s.steps[min(idx, len(s.steps)-1)]
	}
	s.mu.Unlock()

	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	headers := step.Headers
	if headers == nil {
		headers = http.Header{}
	}
	return &httpclient.Response{
		StatusCode: step.Status,
		Body:       step.Body,
		Headers:    headers,
		Stats:      httpclient.Stats{CallCount: int64(idx + 1)},
	}, nil
}

// Close implements httpclient.Transport and counts calls.
func (s *ScriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Calls returns the number of Send calls.
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the requests passed to Send.
func (s *ScriptedTransport) Requests() []*httpclient.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*httpclient.Request(nil), s.requests...)
}

// SentAt returns when each Send started.
func (s *ScriptedTransport) SentAt() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.sentAt...)
}

// Closed returns how many times Close was called.
func (s *ScriptedTransport) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
