package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Raw payment statuses reported by the gateway.
const (
	StatusApproved    = "approved"
	StatusPending     = "pending"
	StatusInProcess   = "in_process"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
)

type PreferenceRequest struct {
	Items               []Item          `json:"items"`
	Payer               *Payer          `json:"payer,omitempty"`
	ExternalReference   string          `json:"external_reference"`
	NotificationURL     string          `json:"notification_url,omitempty"`
	BackURLs            *BackURLs       `json:"back_urls,omitempty"`
	AutoReturn          string          `json:"auto_return,omitempty"`
	StatementDescriptor string          `json:"statement_descriptor,omitempty"`
	PaymentMethods      *PaymentMethods `json:"payment_methods,omitempty"`
	Metadata            map[string]any  `json:"metadata,omitempty"`

	IdempotencyKey string `json:"-"`
}

type Item struct {
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CurrencyID  string          `json:"currency_id"`
}

// MarshalJSON renders unit_price as a JSON number; the gateway rejects quoted amounts.
func (i Item) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID          string      `json:"id,omitempty"`
		Title       string      `json:"title"`
		Description string      `json:"description,omitempty"`
		Quantity    int         `json:"quantity"`
		UnitPrice   json.Number `json:"unit_price"`
		CurrencyID  string      `json:"currency_id"`
	}
	return json.Marshal(wire{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Quantity:    i.Quantity,
		UnitPrice:   json.Number(i.UnitPrice.StringFixed(2)),
		CurrencyID:  i.CurrencyID,
	})
}

type Payer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone *Phone `json:"phone,omitempty"`
}

type Phone struct {
	AreaCode string `json:"area_code"`
	Number   string `json:"number"`
}

type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type PaymentMethods struct {
	Installments        int `json:"installments,omitempty"`
	DefaultInstallments int `json:"default_installments,omitempty"`
}

// Preference is the gateway-side checkout session.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// RedirectURL prefers the production init point.
func (p Preference) RedirectURL() string {
	if p.InitPoint != "" {
		return p.InitPoint
	}
	return p.SandboxInitPoint
}

// Payment is the normalized view of a gateway payment.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Amount            *decimal.Decimal
	PaymentMethodID   string
	PaymentTypeID     string
	Installments      int
	DateCreated       time.Time
	DateApproved      *time.Time
}

type paymentPayload struct {
	ID                json.Number      `json:"id"`
	Status            string           `json:"status"`
	StatusDetail      string           `json:"status_detail"`
	ExternalReference string           `json:"external_reference"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount"`
	PaymentMethodID   string           `json:"payment_method_id"`
	PaymentTypeID     string           `json:"payment_type_id"`
	Installments      int              `json:"installments"`
	DateCreated       *time.Time       `json:"date_created"`
	DateApproved      *time.Time       `json:"date_approved"`
}

func (p paymentPayload) toPayment() Payment {
	out := Payment{
		ID:                p.ID.String(),
		Status:            strings.TrimSpace(p.Status),
		StatusDetail:      p.StatusDetail,
		ExternalReference: strings.TrimSpace(p.ExternalReference),
		Amount:            p.TransactionAmount,
		PaymentMethodID:   p.PaymentMethodID,
		PaymentTypeID:     p.PaymentTypeID,
		Installments:      p.Installments,
		DateApproved:      p.DateApproved,
	}
	if p.DateCreated != nil {
		out.DateCreated = *p.DateCreated
	}
	return out
}
