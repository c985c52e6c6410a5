package messaging

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`[0-9]+`)

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	digits := phoneDigitsRe.FindAllString(value, -1)
	return strings.Join(digits, "")
}

// NormalizePhone reduces a WhatsApp JID or display number to bare digits with
// country code, the format the provider expects ("5511999990000").
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	// WhatsApp ids arrive as "5511999990000@c.us" or "+55 11 99999-0000".
	if at := strings.IndexByte(value, '@'); at >= 0 {
		value = value[:at]
	}
	return sanitizePhone(value)
}
