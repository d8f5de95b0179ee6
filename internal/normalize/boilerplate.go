package normalize

import (
	"net/textproto"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const forwardedMarker = "Begin forwarded message:"

var (
	forwardedLine = regexp.MustCompile(`(?m)^Begin forwarded message:\r?$`)
	quoteMarker   = regexp.MustCompile(`(?m)^> ?`)

	signatureBlock = regexp.MustCompile(`(?ms)^--+ *\r?$.*`)
	yahooFwdBlock  = regexp.MustCompile(`(?ms)^__+ *\r?$.*`)

	replyHeader = regexp.MustCompile(`^On .*:$`)
	bareLabel   = regexp.MustCompile(`^[^ ]*:$`)
)

// NormalizeQuirks undoes iPhone Mail's habit of quoting forwarded content
// as if it were a reply. Other clients pass through untouched.
func NormalizeQuirks(body string, header textproto.MIMEHeader) string {
	if header == nil || !strings.Contains(header.Get("X-Mailer"), "iPhone Mail") {
		return body
	}

	parts := forwardedLine.Split(body, -1)
	if len(parts) != 2 {
		return body
	}

	return parts[0] + forwardedMarker + quoteMarker.ReplaceAllString(parts[1], "")
}

// StripBoilerplate cuts the "--" signature and the "__" forward block,
// converts legacy Latin-1 text to UTF-8, and trims the result. Delimiter
// lines may end in CRLF.
func StripBoilerplate(body string) string {
	body = signatureBlock.ReplaceAllString(body, "")
	body = yahooFwdBlock.ReplaceAllString(body, "")
	body = latin1ToUTF8(body)
	return strings.TrimSpace(body)
}

// latin1ToUTF8 decodes body as ISO-8859-1 unless it is already valid
// UTF-8. On decoder failure the input is returned as is. Each byte becomes
// one character, so the length in characters is unchanged while the byte
// length grows by one for every byte above 0x7f.
func latin1ToUTF8(body string) string {
	if utf8.ValidString(body) {
		return body
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(body)
	if err != nil {
		return body
	}
	return decoded
}

// StripForwardedTail removes the quoted reply chain and attribution lines
// that clients append after the message text.
func StripForwardedTail(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for len(lines) > 0 && isForwardLine(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}

	// A dangling "label:" line (e.g. "wrote:") belongs to the attribution
	// above it, so both go.
	if n := len(lines); n > 0 && bareLabel.MatchString(lines[n-1]) {
		if n < 2 || !replyHeader.MatchString(lines[n-2]) {
			lines = lines[:max(n-2, 0)]
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isForwardLine(line string) bool {
	return strings.TrimSpace(line) == "" ||
		strings.HasPrefix(line, ">") ||
		replyHeader.MatchString(line)
}
