package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
)

// Dispatcher renders transactional emails and appends them to the mail queue.
type Dispatcher struct {
	renderer *Renderer
	repo     Repository
}

func NewDispatcher(renderer *Renderer, repo Repository) (*Dispatcher, error) {
	if renderer == nil {
		return nil, fmt.Errorf("mail renderer required")
	}
	if repo == nil {
		return nil, fmt.Errorf("mail repository required")
	}
	return &Dispatcher{renderer: renderer, repo: repo}, nil
}

// DedupeKey identifies the single message a template may produce per order.
func DedupeKey(orderID uuid.UUID, name enums.MailTemplate) string {
	return fmt.Sprintf("%s:%s", orderID, name)
}

// Enqueue renders name for order and inserts it within tx. It reports false
// when the message was already queued.
func (d *Dispatcher) Enqueue(ctx context.Context, tx *gorm.DB, name enums.MailTemplate, order models.Order) (bool, error) {
	msg, err := d.renderer.Render(name, order)
	if err != nil {
		return false, err
	}
	orderID := order.ID
	row := &models.MailMessage{
		DedupeKey: DedupeKey(order.ID, name),
		OrderID:   &orderID,
		Template:  name,
		To:        msg.To,
		From:      msg.From,
		ReplyTo:   msg.ReplyTo,
		Subject:   msg.Subject,
		HTML:      msg.HTML,
	}
	inserted, err := d.repo.WithTx(tx).Enqueue(ctx, row)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", name, err)
	}
	return inserted, nil
}
