package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

// Customer aggregates every order placed with the same contact identity.
type Customer struct {
	ID          string               `gorm:"column:id;primaryKey"`
	Name        string               `gorm:"column:name"`
	Email       string               `gorm:"column:email"`
	Phone       string               `gorm:"column:phone"`
	TaxID       string               `gorm:"column:tax_id"`
	Address     types.ContactAddress `gorm:"embedded;embeddedPrefix:address_"`
	OrdersCount int                  `gorm:"column:orders_count;not null;default:0"`
	TotalSpent  decimal.Decimal      `gorm:"column:total_spent;type:numeric(14,2);not null;default:0"`
	LastOrderAt *time.Time           `gorm:"column:last_order_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
