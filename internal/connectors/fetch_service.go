package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weighocr/internal/logger"
	"weighocr/internal/storage"
)

// cursorOverlap re-reads a little before the last fetch so late-delivered mail is not missed;
// the store reports those repeats as unchanged.
const cursorOverlap = time.Hour

type FetchService struct {
	db        *storage.DB
	provider  string
	connector MailConnector
	store     *MailStoreService
	now       func() time.Time
}

// FetchResult counts one fetch. Unchanged messages were already stored with the same content.
type FetchResult struct {
	Fetched   int
	Stored    int
	Unchanged int
	Failed    int
}

func NewFetchService(db *storage.DB, rawMailDir, provider string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		provider:  provider,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		now:       time.Now,
	}
}

func cursorKey(provider, label string) string {
	return fmt.Sprintf("mail.lastFetch.%s.%s", provider, label)
}

// LastFetch returns when provider/label was last fetched without failures, zero if never.
func (s *FetchService) LastFetch(label string) (time.Time, error) {
	v, err := s.db.GetMetadata(cursorKey(s.provider, label))
	if err != nil || v == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad fetch cursor %q: %w", *v, err)
	}
	return t, nil
}

// FetchAndStore pulls up to max messages received since the last clean fetch and stores each
// one. A message that cannot be stored is logged and counted; the call fails only when nothing
// could be stored. The cursor only moves when every message was stored.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	started := s.now().UTC()
	last, err := s.LastFetch(label)
	if err != nil {
		return FetchResult{}, err
	}
	since := time.Time{}
	if !last.IsZero() {
		since = last.Add(-cursorOverlap)
	}

	messages, err := s.connector.FetchInbox(ctx, label, since, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	var errs []error
	for _, msg := range messages {
		doc, changed, err := s.store.Store(msg)
		switch {
		case err != nil:
			logger.Warn("store %s message %s: %v", msg.Provider, msg.MessageID, err)
			errs = append(errs, err)
			res.Failed++
		case changed:
			logger.Debug("stored %s message %s as document %d", msg.Provider, msg.MessageID, doc.ID)
			res.Stored++
		default:
			res.Unchanged++
		}
	}

	if res.Failed > 0 && res.Failed == res.Fetched {
		return res, errors.Join(errs...)
	}
	// a full page may leave older mail behind, so only advance after a partial one
	if res.Failed == 0 && (max <= 0 || res.Fetched < max) {
		if err := s.db.SetMetadata(cursorKey(s.provider, label), started.Format(time.RFC3339)); err != nil {
			return res, err
		}
	}
	return res, nil
}
