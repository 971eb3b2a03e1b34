package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/josima5/venda-projetos-sub001/pkg/enums"
)

// MailMessage is an append-only outbound email waiting for the delivery relay.
type MailMessage struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	DedupeKey    string             `gorm:"column:dedupe_key;not null;uniqueIndex:ux_mail_queue_dedupe_key"`
	OrderID      *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	Template     enums.MailTemplate `gorm:"column:template;type:text;not null"`
	To           []string           `gorm:"column:to_addresses;type:jsonb;serializer:json;not null"`
	From         string             `gorm:"column:from_address;not null"`
	ReplyTo      string             `gorm:"column:reply_to"`
	Subject      string             `gorm:"column:subject;not null"`
	HTML         string             `gorm:"column:html;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time         `gorm:"column:published_at;index"`
	AttemptCount int                `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string            `gorm:"column:last_error"`
}

func (MailMessage) TableName() string {
	return "mail_queue"
}
