package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/intenvy/down-to-earth/httpclient"
)

// Defaults used by HMACSigner.
const (
	DefaultSignatureHeader = "X-Signature"
	DefaultTimestampParam  = "timestamp"
)

// HMACSigner signs requests with HMAC-SHA256 over the encoded query string followed
// by the request body. The API key, if set, is sent in KeyHeader.
type HMACSigner struct {
	Secret          []byte
	APIKey          string
	KeyHeader       string
	SignatureHeader string
	// TimestampParam is added to the query as Unix milliseconds. Empty disables it.
	TimestampParam string
	Now            func() time.Time
}

var _ Signer = (*HMACSigner)(nil)

// Sign implements Signer.
func (s *HMACSigner) Sign(_ context.Context, req *httpclient.Request) (*httpclient.Request, error) {
	if len(s.Secret) == 0 {
		return nil, fmt.Errorf("client: hmac signer has no secret")
	}

	if s.TimestampParam != "" {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		if req.Params == nil {
			req.Params = map[string]string{}
		}
		req.Params[s.TimestampParam] = strconv.FormatInt(now().UnixMilli(), 10)
	}

	body := req.Body
	if body == nil && req.Data != nil {
		var err error
		if body, err = json.Marshal(req.Data); err != nil {
			return nil, fmt.Errorf("%w: encode data: %w", httpclient.ErrInvalidRequest, err)
		}
	}

	query := url.Values{}
	for k, v := range req.Params {
		query.Set(k, v)
	}

	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(query.Encode()))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	header := s.SignatureHeader
	if header == "" {
		header = DefaultSignatureHeader
	}
	req = req.WithHeader(header, signature)
	if s.APIKey != "" && s.KeyHeader != "" {
		req = req.WithHeader(s.KeyHeader, s.APIKey)
	}
	return req, nil
}
