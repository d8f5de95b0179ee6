package email

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/source"
)

const implicitTLSPort = 993

// IMAPClient wraps go-imap v2 for draining one mailbox. Each operation opens
// its own connection and logs out when done.
type IMAPClient struct {
	host     string
	port     int
	username string
	password string
	mailbox  string
}

var _ source.Mailbox = (*IMAPClient)(nil)

// NewIMAPClient creates a client for the incoming server settings.
func NewIMAPClient(cfg model.MailServerConfig, mailbox string) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPClient{
		host:     cfg.Server,
		port:     cfg.Port,
		username: cfg.User,
		password: cfg.Secret,
		mailbox:  mailbox,
	}
}

func (c *IMAPClient) addr() string {
	return c.host + ":" + strconv.Itoa(c.port)
}

// implicitTLS reports whether the port expects TLS from the first byte.
func (c *IMAPClient) implicitTLS() bool {
	return c.port == implicitTLSPort
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *IMAPClient) Connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var client *imapclient.Client
	var err error

	if c.implicitTLS() {
		client, err = imapclient.DialTLS(c.addr(), nil)
	} else {
		client, err = imapclient.DialStartTLS(c.addr(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", c.addr(), err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			SourceType: source.SourceTypeIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// Fetch selects the mailbox, searches for messages not flagged \Deleted and
// returns their full RFC822 text. Messages are fetched with BODY.PEEK[] so
// the \Seen flag is left alone.
func (c *IMAPClient) Fetch(ctx context.Context) ([]source.Message, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagDeleted},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []source.Message
	for {
		if err := ctx.Err(); err != nil {
			return messages, err
		}

		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}

		messages = append(messages, source.Message{
			UID: uint32(buf.UID),
			Raw: raw,
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	return messages, nil
}

// Delete marks the messages \Deleted and expunges the mailbox.
func (c *IMAPClient) Delete(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}

	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	set := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		set = append(set, imap.UID(uid))
	}

	storeCmd := client.Store(imap.UIDSetNum(set...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging messages deleted: %w", err)
	}

	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging %s: %w", c.mailbox, err)
	}

	return nil
}

// IsServerRejection reports whether err is a tagged NO or an untagged BYE
// from the IMAP server. Those end a single scan but should not stop the
// poller.
func IsServerRejection(err error) bool {
	var imapErr *imap.Error
	if !errors.As(err, &imapErr) {
		return false
	}
	return imapErr.Type == imap.StatusResponseTypeNo ||
		imapErr.Type == imap.StatusResponseTypeBye
}
