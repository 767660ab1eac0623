package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intenvy/down-to-earth/retry"
)

func TestFailedErrorAsMap(t *testing.T) {
	tests := []struct {
		name     string
		err      *FailedError
		expected map[string]any
	}{
		{
			name:     "status only",
			err:      &FailedError{Reason: retry.ReasonStopStatus, StatusCode: http.StatusNotFound},
			expected: map[string]any{"message": retry.ReasonStopStatus, "response_status_code": http.StatusNotFound},
		},
		{
			name:     "error text is trimmed and flattened",
			err:      &FailedError{Reason: retry.ReasonStopError, Err: errors.New("  line one\nline two\n")},
			expected: map[string]any{"message": retry.ReasonStopError, "exception": "line one line two"},
		},
		{
			name:     "message only",
			err:      &FailedError{Reason: retry.ReasonMaxAttempts},
			expected: map[string]any{"message": retry.ReasonMaxAttempts},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.AsMap())
		})
	}
}

func TestFailedErrorMarshalJSON(t *testing.T) {
	failure := &FailedError{Reason: retry.ReasonMaxAttempts, StatusCode: 503, Err: errors.New("boom")}

	data, err := json.Marshal(failure)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"maximum attempts reached","response_status_code":503,"exception":"boom"}`, string(data))
}

func TestFailedErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("tls handshake")
	failure := &FailedError{Reason: retry.ReasonStopError, Err: cause}

	assert.Equal(t, "fetch failed: stop exception hit: tls handshake", failure.Error())
	assert.ErrorIs(t, failure, cause)

	withStatus := &FailedError{Reason: retry.ReasonStopStatus, StatusCode: 404}
	assert.Equal(t, "fetch failed: stop status code hit (status 404)", withStatus.Error())
}

func TestIsFailedAndIsCancellation(t *testing.T) {
	failure := &FailedError{Reason: retry.ReasonMaxAttempts, Err: context.DeadlineExceeded}
	wrapped := fmt.Errorf("call: %w", failure)

	got, ok := IsFailed(wrapped)
	require.True(t, ok)
	assert.Same(t, failure, got)

	_, ok = IsFailed(errors.New("other"))
	assert.False(t, ok)

	assert.False(t, IsCancellation(wrapped))
	assert.True(t, IsCancellation(context.Canceled))
	assert.True(t, IsCancellation(fmt.Errorf("wait: %w", context.DeadlineExceeded)))
	assert.False(t, IsCancellation(nil))
	assert.False(t, IsCancellation(errors.New("other")))
}

func TestAttempt(t *testing.T) {
	var a Attempt
	assert.Equal(t, 0, a.Number())
	assert.Equal(t, 1, a.Next())
	assert.Equal(t, 2, a.Next())
	assert.Equal(t, 2, a.Number())
}
