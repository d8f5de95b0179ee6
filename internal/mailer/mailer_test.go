package mailer

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/showbot/internal/model"
)

func testConfig() model.MailConfig {
	return model.MailConfig{
		From: "Showbot <showbot@example.com>",
		Outgoing: model.MailServerConfig{
			Server: "127.0.0.1",
			Port:   2525,
		},
	}
}

func TestComposeHeaders(t *testing.T) {
	t.Parallel()

	m := New(testConfig(), nil)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC) }

	raw, err := m.Compose(Message{
		To:        "friend@example.com",
		Subject:   "Re: Burlesque123",
		Body:      "See you at the show!",
		InReplyTo: "<abc@mail.example.com>",
	})
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "From: \"Showbot\" <showbot@example.com>\r\n")
	assert.Contains(t, text, "To: <friend@example.com>\r\n")
	assert.Contains(t, text, "Subject: Re: Burlesque123\r\n")
	assert.Contains(t, text, "In-Reply-To: <abc@mail.example.com>\r\n")
	assert.Contains(t, text, "Date: Sun, 01 Mar 2026 20:00:00 +0000\r\n")
	assert.Contains(t, text, "Message-Id: <")
	assert.True(t, strings.HasSuffix(text, "\r\n\r\nSee you at the show!"))
}

func TestComposeRejectsBadRecipient(t *testing.T) {
	t.Parallel()

	_, err := New(testConfig(), nil).Compose(Message{To: "nobody"})
	assert.Error(t, err)
}

func TestAuthFor(t *testing.T) {
	t.Parallel()

	auth, err := authFor(model.MailServerConfig{Server: "smtp.example.com"})
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = authFor(model.MailServerConfig{Server: "smtp.example.com", User: "u", Secret: "s", AuthType: "plain"})
	require.NoError(t, err)
	assert.NotNil(t, auth)

	auth, err = authFor(model.MailServerConfig{User: "u", AuthType: "CRAM-MD5"})
	require.NoError(t, err)
	assert.NotNil(t, auth)

	_, err = authFor(model.MailServerConfig{User: "u", AuthType: "xoauth2"})
	assert.Error(t, err)
}

func TestSendNotConfigured(t *testing.T) {
	t.Parallel()

	m := New(model.MailConfig{From: "showbot@example.com"}, nil)
	err := m.Send(context.Background(), Message{To: "friend@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

// fakeSMTP accepts one session and records the envelope and data.
type fakeSMTP struct {
	ln       net.Listener
	mu       sync.Mutex
	commands []string
	data     string
	done     chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })

	go f.serve()
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve() {
	defer close(f.done)

	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

	reply("220 fake.example.com ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		f.mu.Lock()
		f.commands = append(f.commands, line)
		f.mu.Unlock()

		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO", "HELO":
			reply("250 fake.example.com")
		case "MAIL", "RCPT":
			reply("250 OK")
		case "DATA":
			reply("354 go ahead")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			f.mu.Lock()
			f.data = data.String()
			f.mu.Unlock()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestSendDeliversThroughRelay(t *testing.T) {
	t.Parallel()

	srv := startFakeSMTP(t)

	cfg := testConfig()
	cfg.Outgoing.Port = srv.port()
	cfg.Outgoing.Helo = "showbot.example.com"
	m := New(cfg, nil)

	err := m.Send(context.Background(), Message{
		To:      "Friend <friend@example.com>",
		Subject: "You're in",
		Body:    "See you at Burlesque.",
	})
	require.NoError(t, err)

	select {
	case <-srv.done:
	case <-time.After(5 * time.Second):
		t.Fatal("SMTP session did not finish")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	require.NotEmpty(t, srv.commands)
	assert.Equal(t, "EHLO showbot.example.com", srv.commands[0])
	assert.Contains(t, srv.commands, "MAIL FROM:<showbot@example.com>")
	assert.Contains(t, srv.commands, "RCPT TO:<friend@example.com>")
	assert.Contains(t, srv.data, "Subject: You're in\r\n")
	assert.Contains(t, srv.data, "See you at Burlesque.")
	assert.Equal(t, "QUIT", srv.commands[len(srv.commands)-1])
	assert.NotContains(t, strings.Join(srv.commands, " "), "STARTTLS")
}
