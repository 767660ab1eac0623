package retry

import (
	"errors"
	"fmt"
)

// ErrEmptyOutcome stands in for the error of an outcome that has neither a status nor an error.
var ErrEmptyOutcome = errors.New("attempt produced neither a response nor an error")

// Fatal reasons reported in Result.Reason.
const (
	ReasonStopStatus     = "stop status code hit"
	ReasonStatusNotRetry = "status code not recognized as retryable"
	ReasonStopError      = "stop exception hit"
	ReasonErrorNotRetry  = "exception not recognized as retryable"
	ReasonMaxAttempts    = "maximum attempts reached"
)

// Outcome is what one physical attempt produced. Status is 0 when no response was received.
type Outcome struct {
	// Attempt is the 1-based number of the attempt that produced this outcome.
	Attempt int
	Status  int
	Err     error
}

// HasResponse reports whether a response was received.
func (o Outcome) HasResponse() bool {
	return o.Status != 0
}

// Kind is the decision taken for an outcome.
type Kind int

const (
	Success Kind = iota
	Retry
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the classification of an Outcome. Reason, StatusCode and Err are set for Fatal.
type Result struct {
	Kind       Kind
	Reason     string
	StatusCode int
	Err        error
}

func succeeded() Result {
	return Result{Kind: Success}
}

func retrying() Result {
	return Result{Kind: Retry}
}

func fatal(reason string, status int, err error) Result {
	return Result{Kind: Fatal, Reason: reason, StatusCode: status, Err: err}
}
