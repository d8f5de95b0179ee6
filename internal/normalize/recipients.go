package normalize

import (
	"regexp"
	"strings"

	"github.com/nhle/showbot/internal/model"
)

// DeriveRecipients lists To, then Cc, then Delivered-To. Comma-joined
// values are split, blanks dropped, duplicates kept.
func DeriveRecipients(email model.InboundEmail) []string {
	recipients := make([]string, 0, len(email.To)+len(email.Cc)+1)

	var add func(values ...string)
	add = func(values ...string) {
		for _, v := range values {
			if strings.Contains(v, ",") {
				add(strings.Split(v, ",")...)
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				recipients = append(recipients, v)
			}
		}
	}

	add(email.To...)
	add(email.Cc...)
	add(email.DeliveredTo)

	return recipients
}

var replyPrefix = regexp.MustCompile(`(?i)^((re:|fwd:) *)*`)

// StripReplyPrefixes removes leading "Re:" and "Fwd:" markers from a
// subject line.
func StripReplyPrefixes(subject string) string {
	return strings.TrimSpace(replyPrefix.ReplaceAllString(subject, ""))
}
