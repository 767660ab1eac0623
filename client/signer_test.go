package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intenvy/down-to-earth/httpclient"
	"github.com/intenvy/down-to-earth/internal/testutil"
)

func expectedSignature(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHMACSigner(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	signer := &HMACSigner{
		Secret:         []byte("s3cret"),
		APIKey:         testutil.TestAPIKey,
		KeyHeader:      testutil.TestAPIKeyHeader,
		TimestampParam: DefaultTimestampParam,
		Now:            func() time.Time { return fixed },
	}

	req := httpclient.NewRequest(httpclient.MethodPost, testutil.TestDomain, testutil.TestResource,
		httpclient.WithParams(map[string]any{"symbol": "BTC"}),
		httpclient.WithData(map[string]any{"qty": 1}),
	)

	signed, err := signer.Sign(context.Background(), req.Clone())
	require.NoError(t, err)

	assert.Equal(t, "1700000000000", signed.Params[DefaultTimestampParam])
	assert.Equal(t, testutil.TestAPIKey, signed.Headers[testutil.TestAPIKeyHeader])
	assert.Equal(t,
		expectedSignature("s3cret", `symbol=BTC&timestamp=1700000000000{"qty":1}`),
		signed.Headers[DefaultSignatureHeader])
	assert.NotContains(t, req.Params, DefaultTimestampParam)
}

func TestHMACSignerWithoutTimestamp(t *testing.T) {
	signer := &HMACSigner{Secret: []byte("k"), SignatureHeader: "X-Sig"}

	signed, err := signer.Sign(context.Background(), httpclient.NewRequest(httpclient.MethodGet, testutil.TestDomain, "x",
		httpclient.WithBody([]byte("raw"))))
	require.NoError(t, err)
	assert.Equal(t, expectedSignature("k", "raw"), signed.Headers["X-Sig"])
	assert.Empty(t, signed.Params)
}

func TestHMACSignerRequiresSecret(t *testing.T) {
	_, err := (&HMACSigner{}).Sign(context.Background(), newRequest())
	assert.Error(t, err)
}

