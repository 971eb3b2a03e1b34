package customers

import (
	"strings"
	"unicode"
)

const (
	emailKeyPrefix = "email:"
	phoneKeyPrefix = "phone:"
)

// Identity derives the customer key for a contact. Email wins over phone; an
// empty result means the contact cannot be aggregated.
func Identity(email, phone string) string {
	if normalized := strings.ToLower(strings.TrimSpace(email)); normalized != "" {
		return emailKeyPrefix + normalized
	}
	if digits := DigitsOnly(phone); digits != "" {
		return phoneKeyPrefix + digits
	}
	return ""
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
