package connectors

import (
	"context"
	"time"

	"weighocr/internal"
)

// MailConnector pulls raw certificate emails from one mailbox provider. A non-zero since
// narrows the search to mail received after it; providers may round it down to a day.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, since time.Time, max int) ([]internal.FetchedMailMessage, error)
}
