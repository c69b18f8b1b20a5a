package gmail

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighocr/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{GmailClientID: "id"})
	assert.EqualError(t, err, "missing required env var: GMAIL_CLIENT_SECRET")
}

func TestParseHeaders(t *testing.T) {
	raw := []byte("From: Scale Office <scale@example.com>\r\n" +
		"Subject: =?UTF-8?B?6rOE65+J7Kad66qF7ISc?=\r\n" +
		"Message-ID: <abc@example.com>\r\n" +
		"Date: Mon, 01 Dec 2025 10:30:00 +0900\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
		"Subject: not a header\r\n")

	headers := parseHeaders(raw)
	assert.Equal(t, "계량증명서", headers["subject"])
	assert.Equal(t, "<abc@example.com>", headers["message-id"])
	assert.Equal(t, "Scale Office <scale@example.com>", headers["from"])
}

func TestDecodeBase64URL(t *testing.T) {
	want := []byte("Subject: ?>?\r\n\r\nbody")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := decodeBase64URL("***")
	assert.Error(t, err)
}

func TestMailDateFallback(t *testing.T) {
	got, err := mailDateFallback("Mon, 01 Dec 2025 10:30:00 +0900")
	require.NoError(t, err)
	assert.Equal(t, "2025-12-01T01:30:00Z", got.UTC().Format(time.RFC3339))

	_, err = mailDateFallback("yesterday")
	assert.Error(t, err)
}

func TestRateLimiterBackoffHonoursContext(t *testing.T) {
	r := NewRateLimiter(100, 1)
	require.NoError(t, r.WaitTurn(context.Background()))

	r.Backoff(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.WaitTurn(ctx), context.DeadlineExceeded)
}

func TestToFetchedPrefersInternalDate(t *testing.T) {
	raw := []byte("Subject: scale\r\nDate: Mon, 01 Dec 2025 10:30:00 +0900\r\n\r\nbody")

	msg := toFetched("g-1", raw, time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC).UnixMilli())
	assert.Equal(t, "g-1", msg.MessageID, "no Message-ID header falls back to the Gmail id")
	assert.Equal(t, "2025-12-02T00:00:00Z", msg.ReceivedAt)
	assert.Equal(t, "gmail", msg.Provider)

	msg = toFetched("g-1", raw, 0)
	assert.Equal(t, "2025-12-01T01:30:00Z", msg.ReceivedAt)
}

func TestSearchQueryAddsAfter(t *testing.T) {
	since := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "has:attachment", searchQuery("has:attachment", time.Time{}))
	assert.Equal(t, "has:attachment after:1764547200", searchQuery("has:attachment", since))
	assert.Equal(t, "after:1764547200", searchQuery("", since))
}
