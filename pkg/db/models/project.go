package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

// Project is a catalog entry that can be checked out.
type Project struct {
	ID          string              `gorm:"column:id;primaryKey"`
	Title       string              `gorm:"column:title;not null"`
	Description string              `gorm:"column:description"`
	BasePrice   decimal.Decimal     `gorm:"column:base_price;type:numeric(12,2);not null"`
	Addons      types.ProjectAddons `gorm:"column:addons;type:jsonb;serializer:json"`
	Active      bool                `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
