// Package payments applies gateway payment state to orders. The webhook and
// the reconciliation sweep share the same apply path.
package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/gateway"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/metrics"
)

// PaymentFetcher loads the authoritative payment state.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

// OrderWriter merges payment state onto an order.
type OrderWriter interface {
	ApplyPaymentUpdate(ctx context.Context, update orders.PaymentUpdate) (*models.Order, error)
}

// Outcome summarizes what handling a notification did.
type Outcome string

const (
	OutcomeProcessed Outcome = metrics.WebhookProcessed
	OutcomeIgnored   Outcome = metrics.WebhookIgnored
)

type ServiceParams struct {
	Gateway PaymentFetcher
	Orders  OrderWriter
	Logger  *logger.Logger
}

type Service struct {
	gateway PaymentFetcher
	orders  OrderWriter
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order writer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{gateway: params.Gateway, orders: params.Orders, logg: params.Logger}, nil
}

// HandleNotification fetches the notified payment and merges it onto its order.
// Notifications that cannot be tied to an order are ignored.
func (s *Service) HandleNotification(ctx context.Context, n Notification) (Outcome, error) {
	if !n.IsPayment() {
		s.logg.Debug(s.logg.WithField(ctx, "type", n.Type), "ignoring non-payment notification")
		return OutcomeIgnored, nil
	}
	ctx = s.logg.WithPaymentID(ctx, n.PaymentID)

	payment, err := s.gateway.GetPayment(ctx, n.PaymentID)
	if err != nil {
		if gateway.IsNotFound(err) {
			s.logg.Warn(ctx, "notified payment not found at gateway")
			return OutcomeIgnored, nil
		}
		return "", err
	}

	if _, err := s.Apply(ctx, *payment, enums.UpdateSourceWebhook); err != nil {
		if orders.IsPostProcessError(err) {
			return "", err
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "payment notification not applicable")
			return OutcomeIgnored, nil
		}
		return "", err
	}
	return OutcomeProcessed, nil
}

// Apply maps the gateway payment onto its order, identified by the payment's
// external reference.
func (s *Service) Apply(ctx context.Context, payment gateway.Payment, source enums.UpdateSource) (*models.Order, error) {
	ref := strings.TrimSpace(payment.ExternalReference)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment has no external reference")
	}
	orderID, err := uuid.Parse(ref)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "external reference %q is not an order id", ref)
	}

	status := orders.MapGatewayStatus(payment.Status)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID.String(),
		"raw_status": payment.Status,
		"source":     source,
	})

	update := orders.PaymentUpdate{
		OrderID:          orderID,
		Status:           status,
		RawStatus:        payment.Status,
		StatusDetail:     payment.StatusDetail,
		GatewayPaymentID: payment.ID,
		Amount:           payment.Amount,
		PaidAt:           payment.DateApproved,
		Method:           paymentMethod(payment),
		Installments:     payment.Installments,
		Source:           source,
	}
	order, err := s.orders.ApplyPaymentUpdate(ctx, update)
	if err != nil {
		if orders.IsPostProcessError(err) {
			return order, fmt.Errorf("order %s updated but post-processing failed: %w", orderID, err)
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "status", order.Status), "payment applied to order")
	return order, nil
}

func paymentMethod(payment gateway.Payment) string {
	return firstNonEmpty(payment.PaymentMethodID, payment.PaymentTypeID)
}
