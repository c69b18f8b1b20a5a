package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"weighocr/internal"
	"weighocr/internal/config"
	"weighocr/internal/logger"
)

// Connector pulls unseen certificate mail from an IMAP mailbox.
type Connector struct {
	addr      string
	host      string
	secure    bool
	user      string
	password  string
	markSeen  bool
	sinceDays int
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ name, value string }{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	return &Connector{
		addr:      fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort),
		host:      cfg.IMAPHost,
		secure:    cfg.IMAPSecure,
		user:      cfg.IMAPUser,
		password:  cfg.IMAPPassword,
		markSeen:  cfg.IMAPMarkSeen,
		sinceDays: cfg.IMAPSinceDays,
	}, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	var (
		cl  *imapclient.Client
		err error
	)
	if c.secure {
		cl, err = imapclient.DialTLS(c.addr, &tls.Config{ServerName: c.host})
	} else {
		cl, err = imapclient.Dial(c.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", c.addr, err)
	}
	if err := cl.Login(c.user, c.password); err != nil {
		_ = cl.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return cl, nil
}

// criteria searches unseen mail; the later of the IMAP_SINCE_DAYS window and since wins.
func (c *Connector) criteria(now, since time.Time) *imap.SearchCriteria {
	crit := imap.NewSearchCriteria()
	crit.WithoutFlags = []string{imap.SeenFlag}
	if c.sinceDays > 0 {
		crit.Since = now.AddDate(0, 0, -c.sinceDays)
	}
	if since.After(crit.Since) {
		crit.Since = since
	}
	return crit
}

// FetchInbox returns at most max of the newest unseen messages in mailbox. Seen flags are set
// only after the fetch has drained, one command per connection at a time.
func (c *Connector) FetchInbox(ctx context.Context, mailbox string, since time.Time, max int) ([]internal.FetchedMailMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cl, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer cl.Logout()

	if _, err := cl.Select(mailbox, false); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", mailbox, err)
	}
	ids, err := cl.Search(c.criteria(time.Now(), since))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if max > 0 && len(ids) > max {
		ids = ids[len(ids)-max:]
	}
	logger.Debug("imap %s: %d unseen", mailbox, len(ids))
	if len(ids) == 0 {
		return nil, nil
	}

	out, fetched, err := c.fetch(ctx, cl, ids)
	if err != nil {
		return nil, err
	}

	if c.markSeen && !fetched.Empty() {
		flags := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := cl.Store(fetched, flags, []interface{}{imap.SeenFlag}, nil); err != nil {
			return nil, fmt.Errorf("imap mark seen: %w", err)
		}
	}
	return out, nil
}

func (c *Connector) fetch(ctx context.Context, cl *imapclient.Client, ids []uint32) ([]internal.FetchedMailMessage, *imap.SeqSet, error) {
	set := new(imap.SeqSet)
	set.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	ch := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() { done <- cl.Fetch(set, items, ch) }()

	var (
		out      = make([]internal.FetchedMailMessage, 0, len(ids))
		fetched  = new(imap.SeqSet)
		firstErr error
	)
	for msg := range ch {
		// keep draining so the fetch goroutine can finish
		if msg == nil || firstErr != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			firstErr = fmt.Errorf("imap read uid=%d: %w", msg.Uid, err)
			continue
		}
		out = append(out, toFetched(msg, raw))
		fetched.AddNum(msg.SeqNum)
	}
	if err := <-done; err != nil && firstErr == nil {
		firstErr = fmt.Errorf("imap fetch: %w", err)
	}
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return out, fetched, nil
}

func toFetched(msg *imap.Message, raw []byte) internal.FetchedMailMessage {
	m := internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  fmt.Sprintf("imap-%d", msg.Uid),
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Raw:        raw,
	}
	if env := msg.Envelope; env != nil {
		if env.MessageId != "" {
			m.MessageID = env.MessageId
		}
		m.Subject = env.Subject
		m.From = formatAddresses(env.From)
	}
	if !msg.InternalDate.IsZero() {
		m.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}
	return m
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := a.Address()
		if a.PersonalName == "" {
			parts = append(parts, email)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
	}
	return strings.Join(parts, ", ")
}
