package normalize

import (
	"strings"

	"github.com/nhle/showbot/internal/model"
)

// SelectPrimaryPart returns the readable text of email.
//
// For multipart messages the parts are scanned in order: attachments are
// skipped, the first text/plain part wins, and a multipart/alternative part
// yields its nested text/plain body. When nothing matches, the first part's
// body is returned; this relies on producers putting the text part first.
func SelectPrimaryPart(email model.InboundEmail) string {
	if !email.IsMultipart {
		return email.Body
	}

	for _, part := range email.Parts {
		if isAttachment(part) {
			continue
		}
		switch {
		case hasMediaType(part.ContentType, "text/plain"):
			return part.Body
		case hasMediaType(part.ContentType, "multipart/alternative"):
			if text, ok := findTextPart(part.Parts); ok {
				return text
			}
		}
	}

	if len(email.Parts) == 0 {
		return email.Body
	}
	return email.Parts[0].Body
}

// findTextPart searches a part tree depth-first for a text/plain leaf.
func findTextPart(parts []model.Part) (string, bool) {
	for _, part := range parts {
		if isAttachment(part) {
			continue
		}
		if hasMediaType(part.ContentType, "text/plain") {
			return part.Body, true
		}
		if len(part.Parts) > 0 {
			if text, ok := findTextPart(part.Parts); ok {
				return text, true
			}
		}
	}
	return "", false
}

func isAttachment(part model.Part) bool {
	return strings.Contains(strings.ToLower(part.ContentDisposition), "attachment")
}

func hasMediaType(contentType, mediaType string) bool {
	return strings.HasPrefix(
		strings.ToLower(strings.TrimSpace(contentType)), mediaType,
	)
}
