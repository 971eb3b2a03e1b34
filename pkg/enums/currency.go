package enums

// Currency is an ISO 4217 code accepted by the payment gateway.
type Currency string

// CurrencyBRL is the only currency the catalog is priced in.
const CurrencyBRL Currency = "BRL"

func (c Currency) String() string {
	return string(c)
}
