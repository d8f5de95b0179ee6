package normalize

import (
	"regexp"
	"strings"

	"github.com/nhle/showbot/internal/model"
)

var promoPattern = regexp.MustCompile(`([a-zA-Z]+)(\d+)`)

// ExtractPromoCode looks for letters followed by digits on the first
// non-empty line of body. The boolean is false when there is no code.
func ExtractPromoCode(body string) (model.PromoCode, bool) {
	m := promoPattern.FindStringSubmatch(firstLine(body))
	if m == nil {
		return model.PromoCode{}, false
	}
	return model.PromoCode{Prefix: m[1], Suffix: m[2], Raw: m[1] + m[2]}, true
}

func firstLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
