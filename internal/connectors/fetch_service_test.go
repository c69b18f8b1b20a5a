package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighocr/internal"
	"weighocr/internal/pipeline"
	"weighocr/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
	err      error
	calls    int
	since    []time.Time
}

func (s *stubConnector) FetchInbox(_ context.Context, _ string, since time.Time, max int) ([]internal.FetchedMailMessage, error) {
	s.calls++
	s.since = append(s.since, since)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.messages) > max {
		return s.messages[:max], nil
	}
	return s.messages, nil
}

func TestFetchAndStore(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	raw := []byte("Subject: 계량표\r\n\r\n총중량 1,000 kg\r\n")
	stub := &stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "gmail", MessageID: "<1@example.com>", Subject: "계량표", ReceivedAt: "2025-12-01T00:00:00Z", Raw: raw},
		{Provider: "gmail", MessageID: "<2@example.com>", Subject: "계량표", ReceivedAt: "2025-12-02T00:00:00Z", Raw: raw},
	}}

	rawDir := filepath.Join(tmp, "raw")
	svc := NewFetchService(db, rawDir, "gmail", stub)
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 2, Stored: 2}, res)

	entries, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "identical bodies share one file")
	assert.Equal(t, HashBytes(raw)+".eml", entries[0].Name())

	docs, err := db.ListDocumentsByStatus("fetched", "gmail", 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "<1@example.com>", docs[0].Name)
	assert.Equal(t, filepath.Join(rawDir, entries[0].Name()), docs[0].RawRef)

	// a second fetch of the same messages does not duplicate documents
	res, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 2, Unchanged: 2}, res)
	counts, err := db.CountDocumentsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts["fetched"])
}

func TestStoreRequeuesChangedMessage(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	store := NewMailStoreService(db, filepath.Join(tmp, "raw"))
	msg := internal.FetchedMailMessage{Provider: "imap", MessageID: "<9@example.com>", Raw: []byte("Subject: a\r\n\r\n총중량 1,000 kg\r\n")}
	doc, changed, err := store.Store(msg)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, db.UpdateDocumentStatus(doc.ID, "processed"))

	_, changed, err = store.Store(msg)
	require.NoError(t, err)
	assert.False(t, changed)

	msg.Raw = []byte("Subject: a\r\n\r\n총중량 2,000 kg\r\n")
	again, changed, err := store.Store(msg)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, doc.ID, again.ID)
	assert.Equal(t, pipeline.StatusFetched, again.Status)
	assert.Equal(t, HashBytes(msg.Raw), again.Hash)
}

func TestFetchAndStoreFailsWhenNothingStored(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	stub := &stubConnector{messages: []internal.FetchedMailMessage{{Provider: "gmail", MessageID: "<1@example.com>", Raw: []byte("x")}}}
	res, err := NewFetchService(db, blocker, "gmail", stub).FetchAndStore(context.Background(), "INBOX", 10)
	require.Error(t, err)
	assert.Equal(t, FetchResult{Fetched: 1, Failed: 1}, res)
}

func TestFetchAndStorePropagatesError(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	svc := NewFetchService(db, t.TempDir(), "gmail", &stubConnector{err: boom})
	_, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	assert.ErrorIs(t, err, boom)
}

func TestFetchCursorNarrowsNextFetch(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	first := time.Date(2025, 12, 1, 6, 0, 0, 0, time.UTC)
	stub := &stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<1@example.com>", Raw: []byte("Subject: a\r\n\r\nx")},
	}}
	svc := NewFetchService(db, t.TempDir(), "imap", stub)
	svc.now = func() time.Time { return first }

	last, err := svc.LastFetch("INBOX")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	_, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	last, err = svc.LastFetch("INBOX")
	require.NoError(t, err)
	assert.Equal(t, first, last)

	svc.now = func() time.Time { return first.Add(24 * time.Hour) }
	_, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	require.Len(t, stub.since, 2)
	assert.True(t, stub.since[0].IsZero())
	assert.Equal(t, first.Add(-time.Hour), stub.since[1])

	// a full page does not move the cursor
	svc.now = func() time.Time { return first.Add(48 * time.Hour) }
	_, err = svc.FetchAndStore(context.Background(), "INBOX", 1)
	require.NoError(t, err)
	last, err = svc.LastFetch("INBOX")
	require.NoError(t, err)
	assert.Equal(t, first.Add(24*time.Hour), last)

	other, err := NewFetchService(db, t.TempDir(), "imap", stub).LastFetch("Archive")
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}
