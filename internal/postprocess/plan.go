// Package postprocess turns committed order writes into their one-shot side
// effects: status bookkeeping, transactional email and customer aggregation.
package postprocess

import (
	"github.com/josima5/venda-projetos-sub001/internal/customers"
	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
)

type EffectKind string

const (
	EffectMarkPaid         EffectKind = "mark_paid"
	EffectHistory          EffectKind = "history"
	EffectEmail            EffectKind = "email"
	EffectAggregate        EffectKind = "aggregate"
	EffectRecordTransition EffectKind = "record_transition"
)

// Effect is one idempotent action derived from a write.
type Effect struct {
	Kind     EffectKind
	From     enums.OrderStatus
	To       enums.OrderStatus
	Template enums.MailTemplate
}

// Plan derives the effects of a write from the prior and new order state. It
// reads only the event; every effect re-checks its guard when executed.
func Plan(ev orders.WriteEvent) []Effect {
	next := ev.New
	var from enums.OrderStatus
	if ev.Prior != nil {
		from = ev.Prior.Status
	}

	var effects []Effect
	switch {
	case next.Status == enums.OrderStatusPaid:
		paidFrom := from
		if paidFrom == "" || paidFrom == enums.OrderStatusPaid {
			paidFrom = enums.OrderStatusPending
		}
		effects = append(effects, Effect{Kind: EffectMarkPaid, From: paidFrom, To: enums.OrderStatusPaid})
	case ev.StatusChanged():
		effects = append(effects, Effect{Kind: EffectHistory, From: from, To: next.Status})
	}

	if tmpl, ok := emailFor(ev); ok {
		effects = append(effects, Effect{Kind: EffectEmail, To: next.Status, Template: tmpl})
	}

	if customers.Identity(next.Customer.Email, next.Customer.Phone) != "" {
		effects = append(effects, Effect{Kind: EffectAggregate})
	}

	if ev.StatusChanged() {
		effects = append(effects, Effect{Kind: EffectRecordTransition, From: from, To: next.Status})
	}
	return effects
}

func emailFor(ev orders.WriteEvent) (enums.MailTemplate, bool) {
	next := ev.New
	if !next.Customer.HasEmail() {
		return "", false
	}
	// The received email goes out on the first write after creation that
	// leaves the order pending; the flag keeps it one-shot.
	if next.Status == enums.OrderStatusPending && ev.IsCreate() {
		return "", false
	}
	tmpl, ok := enums.MailTemplateForStatus(next.Status)
	if !ok || next.PostProcess.EmailQueued(tmpl) {
		return "", false
	}
	return tmpl, true
}
