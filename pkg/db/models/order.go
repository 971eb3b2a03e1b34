package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

// Order is one checkout attempt for a catalog project.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID    string            `gorm:"column:project_id;not null;index"`
	ProjectTitle string            `gorm:"column:project_title;not null"`
	OwnerUserID  *string           `gorm:"column:owner_user_id;index"`
	BasePrice    decimal.Decimal   `gorm:"column:base_price;type:numeric(12,2);not null"`
	Addons       types.OrderAddons `gorm:"column:addons;type:jsonb;serializer:json"`
	AddonsTotal  decimal.Decimal   `gorm:"column:addons_total;type:numeric(12,2);not null"`
	Total        decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	Customer     OrderCustomer     `gorm:"embedded;embeddedPrefix:customer_"`
	Payment      OrderPayment      `gorm:"embedded;embeddedPrefix:payment_"`
	PostProcess  OrderPostProcess  `gorm:"embedded;embeddedPrefix:pp_"`
	Fulfillment  OrderFulfillment  `gorm:"embedded;embeddedPrefix:fulfillment_"`
	CustomerKey  *string           `gorm:"column:customer_key;index"`
	PaidAt       *time.Time        `gorm:"column:paid_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	// ReconcileCheckedAt is stamped each time the reconcile sweep visits the order.
	ReconcileCheckedAt *time.Time `gorm:"column:reconcile_checked_at"`
}

// OrderCustomer is the contact snapshot taken at checkout.
type OrderCustomer struct {
	Name    string               `gorm:"column:name;not null"`
	Email   string               `gorm:"column:email"`
	Phone   string               `gorm:"column:phone"`
	TaxID   string               `gorm:"column:tax_id"`
	Address types.ContactAddress `gorm:"embedded;embeddedPrefix:address_"`
}

// HasEmail reports whether the snapshot carries a deliverable address.
func (c OrderCustomer) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}

// OrderPayment mirrors what the gateway reported for the order.
type OrderPayment struct {
	Method           string           `gorm:"column:method"`
	Installments     int              `gorm:"column:installments;not null;default:1"`
	Gateway          string           `gorm:"column:gateway"`
	GatewayPaymentID *string          `gorm:"column:gateway_payment_id;index"`
	RawStatus        string           `gorm:"column:raw_status"`
	StatusDetail     string           `gorm:"column:status_detail"`
	Amount           *decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	PaidAt           *time.Time       `gorm:"column:paid_at"`
	PreferenceID     *string          `gorm:"column:preference_id;index"`
	InitPoint        string           `gorm:"column:init_point"`
}

// OrderPostProcess holds one flag per side effect. A true flag means the
// effect already happened and must not run again.
type OrderPostProcess struct {
	PaidHandled           bool `gorm:"column:paid_handled;not null;default:false"`
	EmailPendingQueued    bool `gorm:"column:email_pending_queued;not null;default:false"`
	EmailPaidQueued       bool `gorm:"column:email_paid_queued;not null;default:false"`
	EmailCanceledQueued   bool `gorm:"column:email_canceled_queued;not null;default:false"`
	EmailRefundedQueued   bool `gorm:"column:email_refunded_queued;not null;default:false"`
	EmailChargebackQueued bool `gorm:"column:email_chargeback_queued;not null;default:false"`
	CustomerLinked        bool `gorm:"column:customer_linked;not null;default:false"`
	AggPaidCounted        bool `gorm:"column:agg_paid_counted;not null;default:false"`
}

// EmailQueued reports the flag guarding the given template.
func (p OrderPostProcess) EmailQueued(tmpl enums.MailTemplate) bool {
	switch tmpl {
	case enums.MailTemplatePending:
		return p.EmailPendingQueued
	case enums.MailTemplatePaid:
		return p.EmailPaidQueued
	case enums.MailTemplateCanceled:
		return p.EmailCanceledQueued
	case enums.MailTemplateRefunded:
		return p.EmailRefundedQueued
	case enums.MailTemplateChargeback:
		return p.EmailChargebackQueued
	}
	return false
}

// EmailFlagColumn returns the orders column guarding the given template.
func EmailFlagColumn(tmpl enums.MailTemplate) (string, bool) {
	switch tmpl {
	case enums.MailTemplatePending:
		return "pp_email_pending_queued", true
	case enums.MailTemplatePaid:
		return "pp_email_paid_queued", true
	case enums.MailTemplateCanceled:
		return "pp_email_canceled_queued", true
	case enums.MailTemplateRefunded:
		return "pp_email_refunded_queued", true
	case enums.MailTemplateChargeback:
		return "pp_email_chargeback_queued", true
	}
	return "", false
}

// OrderFulfillment tracks delivery of the purchased project.
type OrderFulfillment struct {
	Released   bool       `gorm:"column:released;not null;default:false"`
	ReleasedAt *time.Time `gorm:"column:released_at"`
}

// OrderStatusTransition is one append-only status history entry.
type OrderStatusTransition struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_status_history_edge,priority:1"`
	FromStatus enums.OrderStatus  `gorm:"column:from_status;type:text;not null;default:'';uniqueIndex:ux_order_status_history_edge,priority:2"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:text;not null;uniqueIndex:ux_order_status_history_edge,priority:3"`
	Reason     string             `gorm:"column:reason;not null"`
	Source     enums.UpdateSource `gorm:"column:source;type:text"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusTransition) TableName() string {
	return "order_status_history"
}
