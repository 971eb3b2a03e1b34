package checkout

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/josima5/venda-projetos-sub001/internal/customers"
	"github.com/josima5/venda-projetos-sub001/pkg/gateway"
)

const brazilCountryCode = "55"

var validate = validator.New()

// ParsePhone splits a Brazilian phone into area code and number. A leading
// country code is dropped; what remains must have 10 or 11 digits.
func ParsePhone(raw string) (*gateway.Phone, bool) {
	digits := customers.DigitsOnly(raw)
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, brazilCountryCode) {
		digits = digits[len(brazilCountryCode):]
	}
	if len(digits) < 10 || len(digits) > 11 {
		return nil, false
	}
	return &gateway.Phone{AreaCode: digits[:2], Number: digits[2:]}, true
}

// ValidEmail reports whether email is structurally valid.
func ValidEmail(email string) bool {
	trimmed := strings.TrimSpace(email)
	return trimmed != "" && validate.Var(trimmed, "email") == nil
}

func buildPayer(c Customer) *gateway.Payer {
	payer := &gateway.Payer{Name: strings.TrimSpace(c.Name)}
	if ValidEmail(c.Email) {
		payer.Email = strings.TrimSpace(c.Email)
	}
	if phone, ok := ParsePhone(c.Phone); ok {
		payer.Phone = phone
	}
	return payer
}
