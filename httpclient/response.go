package httpclient

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/intenvy/down-to-earth/retry"
)

// Response is one physical HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return IsSuccessStatus(r.StatusCode)
}

// Decode returns the body as JSON when it parses, {"raw": body} when it does not,
// and nil for an empty body.
func (r *Response) Decode() any {
	if len(r.Body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return map[string]any{"raw": string(r.Body)}
	}
	return v
}

// DecodeJSON unmarshals the body into v. A content type other than JSON fails
// with a retry.ContentType TransportError.
func (r *Response) DecodeJSON(v any) error {
	ct := r.Headers.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !isJSONMediaType(mediaType) {
		return NewTransportError(retry.ContentType, "unexpected content type "+quoteOrEmpty(ct), err)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return NewTransportError(retry.ContentType, "invalid JSON body", err)
	}
	return nil
}

func isJSONMediaType(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "(none)"
	}
	return `"` + s + `"`
}
