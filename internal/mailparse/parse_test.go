package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/showbot/internal/normalize"
)

func rfc822(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParsePlainMessage(t *testing.T) {
	t.Parallel()

	raw := rfc822(
		"From: Friend <friend@example.com>",
		"To: showbot@example.com, Other <other@example.com>",
		"Cc: cc@example.com",
		"Delivered-To: showbotapp@gmail.com",
		"Subject: Re: tickets",
		"Message-Id: <abc123@example.com>",
		"X-Mailer: iPhone Mail (8C148)",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Burlesque123",
		"",
		"See you!",
	)

	email, err := Parse(raw)
	require.NoError(t, err)

	assert.False(t, email.IsMultipart)
	assert.Equal(t, "friend@example.com", email.Sender)
	assert.Equal(t, "Re: tickets", email.Subject)
	assert.Equal(t, "abc123@example.com", email.MessageID)
	assert.Equal(t, []string{"showbot@example.com", "other@example.com"}, email.To)
	assert.Equal(t, []string{"cc@example.com"}, email.Cc)
	assert.Equal(t, "showbotapp@gmail.com", email.DeliveredTo)
	assert.Equal(t, "iPhone Mail (8C148)", email.HeaderValue("X-Mailer"))
	assert.Equal(t, "Burlesque123\r\n\r\nSee you!", email.Body)
}

func TestParseMultipartWithAttachmentFirst(t *testing.T) {
	t.Parallel()

	raw := rfc822(
		"From: friend@example.com",
		"To: showbot@example.com",
		"Subject: code",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		"Content-Type: application/pdf; name=ticket.pdf",
		"Content-Disposition: attachment; filename=ticket.pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0xLjQK",
		"--outer",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Burlesque123 caf=E9",
		"--outer--",
		"",
	)

	email, err := Parse(raw)
	require.NoError(t, err)
	require.True(t, email.IsMultipart)
	require.Len(t, email.Parts, 2)

	assert.Contains(t, email.Parts[0].ContentDisposition, "attachment")
	assert.Equal(t, "Burlesque123 café", normalize.SelectPrimaryPart(email))
}

func TestParseNestedAlternative(t *testing.T) {
	t.Parallel()

	raw := rfc822(
		"From: friend@example.com",
		"Subject: code",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"Burlesque123",
		"--inner",
		"Content-Type: text/html",
		"",
		"<p>Burlesque123</p>",
		"--inner--",
		"--outer--",
		"",
	)

	email, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, email.Parts, 1)
	require.Len(t, email.Parts[0].Parts, 2)

	intake := normalize.Normalize(email)
	require.NotNil(t, intake.PromoCode)
	assert.Equal(t, "Burlesque123", intake.PromoCode.Raw)
	assert.Equal(t, "Burlesque123", intake.Comment.Text)
}

func TestParseUnknownCharsetKeepsBytes(t *testing.T) {
	t.Parallel()

	raw := rfc822(
		"From: friend@example.com",
		"Content-Type: text/plain; charset=x-made-up",
		"",
		"Burlesque123",
	)

	email, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Burlesque123", email.Body)
}
