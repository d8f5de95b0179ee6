package source

import (
	"context"
	"errors"
	"fmt"
)

// AuthError indicates that a remote mailbox or API rejected our credentials.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of inbound source.
type SourceType string

const (
	SourceTypeIMAP    SourceType = "imap"
	SourceTypeWebhook SourceType = "webhook"
)

// Message is a single undecoded RFC822 message held by a mailbox.
type Message struct {
	UID uint32
	Raw []byte
}

// Mailbox defines the contract for an inbox that showbot drains.
type Mailbox interface {
	// Fetch returns every message not already flagged for deletion.
	Fetch(ctx context.Context) ([]Message, error)

	// Delete flags the given messages as deleted and expunges them.
	Delete(ctx context.Context, uids []uint32) error
}
