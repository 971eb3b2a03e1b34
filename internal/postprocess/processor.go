package postprocess

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/internal/analytics"
	"github.com/josima5/venda-projetos-sub001/internal/customers"
	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

// MailEnqueuer appends a rendered template for the order within tx.
type MailEnqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, name enums.MailTemplate, order models.Order) (bool, error)
}

// CustomerAggregator folds an order into its customer aggregate.
type CustomerAggregator interface {
	Aggregate(ctx context.Context, orderID uuid.UUID) (customers.Result, error)
}

// TransitionRecorder receives every observed status change.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, t analytics.Transition) error
}

type Params struct {
	Orders    orders.Repository
	Tx        orders.TxRunner
	Mail      MailEnqueuer
	Customers CustomerAggregator
	// Recorder is optional.
	Recorder TransitionRecorder
	Logger   *logger.Logger
	Now      func() time.Time
}

// Processor executes planned effects. It implements orders.WriteHook.
type Processor struct {
	orders    orders.Repository
	tx        orders.TxRunner
	mail      MailEnqueuer
	customers CustomerAggregator
	recorder  TransitionRecorder
	logg      *logger.Logger
	now       func() time.Time
}

func NewProcessor(params Params) (*Processor, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Mail == nil {
		return nil, fmt.Errorf("mail enqueuer required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer aggregator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Processor{
		orders:    params.Orders,
		tx:        params.Tx,
		mail:      params.Mail,
		customers: params.Customers,
		recorder:  params.Recorder,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// OnOrderWrite runs every effect planned for ev. A failing effect does not
// stop the others; all failures are returned together.
func (p *Processor) OnOrderWrite(ctx context.Context, ev orders.WriteEvent) error {
	ctx = p.logg.WithFields(ctx, map[string]any{
		"order_id": ev.OrderID.String(),
		"status":   ev.New.Status,
		"source":   ev.Source,
	})

	var errs error
	for _, effect := range Plan(ev) {
		if err := p.run(ctx, ev, effect); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", effect.Kind, err))
		}
	}
	return errs
}

func (p *Processor) run(ctx context.Context, ev orders.WriteEvent, effect Effect) error {
	switch effect.Kind {
	case EffectMarkPaid:
		_, err := p.MarkPaid(ctx, ev.OrderID, effect.From, ev.Source)
		return err
	case EffectHistory:
		_, err := p.orders.AppendTransition(ctx, &models.OrderStatusTransition{
			OrderID:    ev.OrderID,
			FromStatus: effect.From,
			ToStatus:   effect.To,
			Reason:     transitionReason(effect.From, effect.To, ev.Source),
			Source:     ev.Source,
			CreatedAt:  p.now(),
		})
		return err
	case EffectEmail:
		queued, err := p.QueueEmail(ctx, ev.OrderID, effect.Template)
		if err == nil && queued {
			p.logg.Info(p.logg.WithField(ctx, "template", effect.Template), "order email queued")
		}
		return err
	case EffectAggregate:
		_, err := p.customers.Aggregate(ctx, ev.OrderID)
		return err
	case EffectRecordTransition:
		if p.recorder == nil {
			return nil
		}
		return p.recordTransition(ctx, ev, effect)
	}
	return fmt.Errorf("unknown effect %q", effect.Kind)
}

// MarkPaid runs the first-paid bookkeeping once per order. It reports whether
// this call performed it.
func (p *Processor) MarkPaid(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, source enums.UpdateSource) (bool, error) {
	var handled bool
	err := p.tx.WithTxRetry(ctx, func(tx *gorm.DB) error {
		handled = false
		repo := p.orders.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PostProcess.PaidHandled {
			return nil
		}

		now := p.now()
		updates := map[string]any{"pp_paid_handled": true}
		if order.PaidAt == nil {
			paidAt := now
			if order.Payment.PaidAt != nil {
				paidAt = order.Payment.PaidAt.UTC()
			}
			updates["paid_at"] = paidAt
		}
		if !order.Fulfillment.Released {
			updates["fulfillment_released"] = true
			updates["fulfillment_released_at"] = now
		}
		if err := repo.Update(ctx, orderID, updates); err != nil {
			return err
		}
		if _, err := repo.AppendTransition(ctx, &models.OrderStatusTransition{
			OrderID:    orderID,
			FromStatus: from,
			ToStatus:   enums.OrderStatusPaid,
			Reason:     transitionReason(from, enums.OrderStatusPaid, source),
			Source:     source,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		handled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return handled, nil
}

// QueueEmail enqueues the template for the order unless its flag is already
// set. The flag and the queue row are written in one transaction under the
// order's row lock.
func (p *Processor) QueueEmail(ctx context.Context, orderID uuid.UUID, tmpl enums.MailTemplate) (bool, error) {
	column, ok := models.EmailFlagColumn(tmpl)
	if !ok {
		return false, fmt.Errorf("unknown mail template %q", tmpl)
	}

	var queued bool
	err := p.tx.WithTxRetry(ctx, func(tx *gorm.DB) error {
		queued = false
		repo := p.orders.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PostProcess.EmailQueued(tmpl) || !order.Customer.HasEmail() {
			return nil
		}
		if current, _ := enums.MailTemplateForStatus(order.Status); current != tmpl {
			return nil
		}

		inserted, err := p.mail.Enqueue(ctx, tx, tmpl, *order)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, orderID, map[string]any{column: true}); err != nil {
			return err
		}
		queued = inserted
		return nil
	})
	if err != nil {
		return false, err
	}
	return queued, nil
}

// QueuePaidEmail runs the payment-approved email path for one order.
func (p *Processor) QueuePaidEmail(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return p.QueueEmail(ctx, orderID, enums.MailTemplatePaid)
}

func (p *Processor) recordTransition(ctx context.Context, ev orders.WriteEvent, effect Effect) error {
	amount := ev.New.Total
	if ev.New.Payment.Amount != nil {
		amount = *ev.New.Payment.Amount
	}
	paymentID := ""
	if ev.New.Payment.GatewayPaymentID != nil {
		paymentID = *ev.New.Payment.GatewayPaymentID
	}
	err := p.recorder.RecordTransition(ctx, analytics.Transition{
		OrderID:    ev.OrderID,
		From:       effect.From,
		To:         effect.To,
		Amount:     amount,
		Source:     ev.Source,
		PaymentID:  paymentID,
		RawStatus:  ev.New.Payment.RawStatus,
		OccurredAt: p.now(),
	})
	if err != nil {
		// best effort
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "transition analytics write failed")
	}
	return nil
}

func transitionReason(from, to enums.OrderStatus, source enums.UpdateSource) string {
	if from == "" {
		return fmt.Sprintf("order created via %s", source)
	}
	return fmt.Sprintf("%s -> %s via %s", from, to, source)
}
