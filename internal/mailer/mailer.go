// Package mailer sends showbot's outgoing mail through the configured SMTP
// relay.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/showbot/internal/model"
)

const (
	implicitTLSPort = 465
	dialTimeout     = 30 * time.Second
)

// ErrNotConfigured is returned by Send when no outgoing server is set.
var ErrNotConfigured = errors.New("outgoing mail server not configured")

// Message is a plain-text mail to one recipient.
type Message struct {
	To        string
	Subject   string
	Body      string
	InReplyTo string
}

// Mailer composes and relays messages.
type Mailer struct {
	server model.MailServerConfig
	from   string
	logger *log.Logger
	now    func() time.Time
}

// New returns a Mailer for the outgoing server in cfg. The sender address
// is the server's From, falling back to the mail-wide From.
func New(cfg model.MailConfig, logger *log.Logger) *Mailer {
	if logger == nil {
		logger = log.Default()
	}
	from := cfg.Outgoing.From
	if from == "" {
		from = cfg.From
	}
	return &Mailer{
		server: cfg.Outgoing,
		from:   from,
		logger: logger.WithPrefix("mailer"),
		now:    time.Now,
	}
}

// Compose renders msg as RFC 5322 text.
func (m *Mailer) Compose(msg Message) ([]byte, error) {
	from, err := mail.ParseAddress(m.from)
	if err != nil {
		return nil, fmt.Errorf("parsing from address %q: %w", m.from, err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("parsing recipient %q: %w", msg.To, err)
	}

	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	if msg.InReplyTo != "" {
		id := strings.Trim(msg.InReplyTo, "<>")
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("writing headers: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing body: %w", err)
	}

	return buf.Bytes(), nil
}

// Send composes and relays msg. Port 465 uses implicit TLS; any other
// port upgrades with STARTTLS when the server offers it.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.server.Configured() {
		return ErrNotConfigured
	}

	body, err := m.Compose(msg)
	if err != nil {
		return err
	}

	client, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := m.authenticate(client); err != nil {
		return err
	}

	if err := deliver(client, addressOf(m.from), addressOf(msg.To), body); err != nil {
		return err
	}

	m.logger.Info("sent mail", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (m *Mailer) dial(ctx context.Context) (*smtp.Client, error) {
	addr := m.server.Addr()
	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}

	tlsConfig := &tls.Config{ServerName: m.server.Server}
	if m.server.Port == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, m.server.Server)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	if m.server.Helo != "" {
		if err := client.Hello(m.server.Helo); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP HELO: %w", err)
		}
	}

	if m.server.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
			}
		}
	}

	return client, nil
}

func (m *Mailer) authenticate(client *smtp.Client) error {
	auth, err := authFor(m.server)
	if err != nil || auth == nil {
		return err
	}
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}
	return nil
}

// authFor maps the configured authtype to an smtp.Auth. A server without a
// user gets no auth.
func authFor(cfg model.MailServerConfig) (smtp.Auth, error) {
	if cfg.User == "" {
		return nil, nil
	}
	switch strings.ToLower(cfg.AuthType) {
	case "", "plain", "login":
		return smtp.PlainAuth("", cfg.User, cfg.Secret, cfg.Server), nil
	case "cram_md5", "cram-md5":
		return smtp.CRAMMD5Auth(cfg.User, cfg.Secret), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported SMTP authtype %q", cfg.AuthType)
	}
}

// deliver sends a message using an already-authenticated SMTP client.
func deliver(client *smtp.Client, from, to string, body []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// addressOf strips any display name for the SMTP envelope.
func addressOf(s string) string {
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Address
	}
	return s
}
