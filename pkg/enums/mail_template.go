package enums

import "fmt"

// MailTemplate names one of the transactional emails tied to an order status.
type MailTemplate string

const (
	MailTemplatePending    MailTemplate = "order_pending"
	MailTemplatePaid       MailTemplate = "order_paid"
	MailTemplateCanceled   MailTemplate = "order_canceled"
	MailTemplateRefunded   MailTemplate = "order_refunded"
	MailTemplateChargeback MailTemplate = "order_chargeback"
)

var validMailTemplates = []MailTemplate{
	MailTemplatePending,
	MailTemplatePaid,
	MailTemplateCanceled,
	MailTemplateRefunded,
	MailTemplateChargeback,
}

func (t MailTemplate) String() string {
	return string(t)
}

func (t MailTemplate) IsValid() bool {
	for _, candidate := range validMailTemplates {
		if candidate == t {
			return true
		}
	}
	return false
}

// MailTemplateForStatus returns the template announcing the given status.
func MailTemplateForStatus(status OrderStatus) (MailTemplate, bool) {
	switch status {
	case OrderStatusPending:
		return MailTemplatePending, true
	case OrderStatusPaid:
		return MailTemplatePaid, true
	case OrderStatusCanceled:
		return MailTemplateCanceled, true
	case OrderStatusRefunded:
		return MailTemplateRefunded, true
	case OrderStatusChargeback:
		return MailTemplateChargeback, true
	}
	return "", false
}

// ParseMailTemplate converts raw input into a MailTemplate.
func ParseMailTemplate(value string) (MailTemplate, error) {
	for _, candidate := range validMailTemplates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mail template %q", value)
}
