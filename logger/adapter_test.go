package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestLogger creates a logger that outputs to a buffer for testing
func createTestLogger() (*ZeroLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	return &ZeroLogger{zlog: &zl, filter: NewSensitiveDataFilter(nil)}, &buf
}

func readEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogEventAdapterFields(t *testing.T) {
	l, buf := createTestLogger()

	l.Info().
		Str("method", "GET").
		Int("attempt", 2).
		Int64("elapsed_ms", 150).
		Uint64("admitted", 7).
		Dur("delay", 2*time.Second).
		Err(errors.New("boom")).
		Msgf("sent %s", "request")

	entry := readEntry(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "sent request", entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.EqualValues(t, 150, entry["elapsed_ms"])
	assert.EqualValues(t, 7, entry["admitted"])
	assert.EqualValues(t, 2000, entry["delay"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogEventAdapterLevels(t *testing.T) {
	tests := []struct {
		name  string
		event func(*ZeroLogger) LogEvent
		level string
	}{
		{name: "info", event: (*ZeroLogger).Info, level: "info"},
		{name: "error", event: (*ZeroLogger).Error, level: "error"},
		{name: "debug", event: (*ZeroLogger).Debug, level: "debug"},
		{name: "warn", event: (*ZeroLogger).Warn, level: "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := createTestLogger()
			tt.event(l).Msg(testMessage)
			assert.Equal(t, tt.level, readEntry(t, buf)["level"])
		})
	}
}

func TestLogEventAdapterMasksSensitiveStr(t *testing.T) {
	l, buf := createTestLogger()

	l.Info().Str("signature", "deadbeef").Str("resource", "v1/orders").Msg(testMessage)

	entry := readEntry(t, buf)
	assert.Equal(t, DefaultMaskValue, entry["signature"])
	assert.Equal(t, "v1/orders", entry["resource"])
}

func TestLogEventAdapterMasksNestedHeaders(t *testing.T) {
	l, buf := createTestLogger()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer secret")
	headers.Set("Accept", "application/json")
	l.Info().Interface("headers", headers).Msg(testMessage)

	entry := readEntry(t, buf)
	logged, ok := entry["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, DefaultMaskValue, logged["Authorization"])
	assert.Equal(t, []any{"application/json"}, logged["Accept"])
}

func TestLogEventAdapterBytes(t *testing.T) {
	l, buf := createTestLogger()
	l.Debug().Bytes("body", []byte(`raw`)).Msg(testMessage)
	assert.Equal(t, "raw", readEntry(t, buf)["body"])
}
