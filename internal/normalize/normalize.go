// Package normalize turns inbound promo emails into a clean comment body,
// an optional promo code and a recipient list.
//
// Every function here is pure and tolerates malformed input. Absent
// structure comes back as an empty value.
package normalize

import (
	"strings"

	"github.com/nhle/showbot/internal/model"
)

// Normalize runs the full pipeline over email.
func Normalize(email model.InboundEmail) model.Intake {
	body := SelectPrimaryPart(email)
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = NormalizeQuirks(body, email.Header)
	body = StripBoilerplate(body)
	body = StripForwardedTail(body)

	intake := model.Intake{
		MessageID:  email.MessageID,
		Sender:     email.Sender,
		Subject:    StripReplyPrefixes(email.Subject),
		Comment:    model.Comment{Text: body},
		Recipients: DeriveRecipients(email),
	}
	if code, ok := ExtractPromoCode(body); ok {
		intake.PromoCode = &code
	}

	return intake
}
