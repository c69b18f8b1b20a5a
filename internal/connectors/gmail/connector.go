package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"weighocr/internal"
	"weighocr/internal/config"
	"weighocr/internal/logger"
)

const pageSize = 100

type Connector struct {
	service *gmail.Service
	query   string
	limiter *RateLimiter
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ name, value string }{
		{"GMAIL_CLIENT_ID", cfg.GmailClientID},
		{"GMAIL_CLIENT_SECRET", cfg.GmailClientSecret},
		{"GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	ts := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &Connector{
		service: svc,
		query:   cfg.GmailQuery,
		limiter: NewRateLimiter(cfg.GmailRPS, cfg.GmailBurst),
	}, nil
}

// FetchInbox lists up to max messages under label matching GMAIL_QUERY and downloads each raw.
func (c *Connector) FetchInbox(ctx context.Context, label string, since time.Time, max int) ([]internal.FetchedMailMessage, error) {
	ids, err := c.list(ctx, label, searchQuery(c.query, since), max)
	if err != nil {
		return nil, err
	}
	logger.Debug("gmail %s: %d message(s) listed", label, len(ids))

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	for _, id := range ids {
		msg, err := c.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			out = append(out, *msg)
		}
	}
	return out, nil
}

// searchQuery narrows query to mail after since; Gmail takes epoch seconds for after:.
func searchQuery(query string, since time.Time) string {
	if since.IsZero() {
		return query
	}
	return strings.TrimSpace(fmt.Sprintf("%s after:%d", query, since.Unix()))
}

func (c *Connector) list(ctx context.Context, label, query string, max int) ([]string, error) {
	var ids []string
	pageToken := ""
	for max <= 0 || len(ids) < max {
		size := int64(pageSize)
		if max > 0 && max-len(ids) < pageSize {
			size = int64(max - len(ids))
		}
		call := c.service.Users.Messages.List("me").LabelIds(label).MaxResults(size).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}
		resp, err := call.Do()
		if err != nil {
			return nil, c.observe(err)
		}
		for _, m := range resp.Messages {
			if m.Id != "" {
				ids = append(ids, m.Id)
			}
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (c *Connector) get(ctx context.Context, id string) (*internal.FetchedMailMessage, error) {
	if err := c.limiter.WaitTurn(ctx); err != nil {
		return nil, err
	}
	resp, err := c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, c.observe(err)
	}
	if resp.Raw == "" {
		return nil, nil
	}
	raw, err := decodeBase64URL(resp.Raw)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", id, err)
	}
	msg := toFetched(id, raw, resp.InternalDate)
	return &msg, nil
}

func toFetched(id string, raw []byte, internalDate int64) internal.FetchedMailMessage {
	headers := parseHeaders(raw)
	msg := internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  headers["message-id"],
		Subject:    headers["subject"],
		From:       headers["from"],
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Raw:        raw,
	}
	if msg.MessageID == "" {
		msg.MessageID = id
	}
	switch {
	case internalDate > 0:
		msg.ReceivedAt = time.UnixMilli(internalDate).UTC().Format(time.RFC3339)
	case headers["date"] != "":
		if t, err := mailDateFallback(headers["date"]); err == nil {
			msg.ReceivedAt = t.UTC().Format(time.RFC3339)
		}
	}
	return msg
}

// observe arms the limiter when Gmail answers 429, using Retry-After when it is sent.
func (c *Connector) observe(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests {
		return err
	}
	wait := time.Minute
	if secs, convErr := strconv.Atoi(apiErr.Header.Get("Retry-After")); convErr == nil && secs > 0 {
		wait = time.Duration(secs) * time.Second
	}
	logger.Warn("gmail rate limited, backing off %s", wait)
	c.limiter.Backoff(wait)
	return err
}

// parseHeaders decodes the headers the document row keeps; a message enmime cannot read
// still gets stored under its Gmail id.
func parseHeaders(raw []byte) map[string]string {
	headers := map[string]string{}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return headers
	}
	for _, name := range []string{"Subject", "From", "Date", "Message-ID"} {
		headers[strings.ToLower(name)] = env.GetHeader(name)
	}
	return headers
}

func decodeBase64URL(input string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(input); err == nil {
		return decoded, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("decode gmail raw payload: %w", err)
	}
	return decoded, nil
}

func mailDateFallback(value string) (time.Time, error) {
	t, err := mail.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported date format: %q", value)
	}
	return t, nil
}
