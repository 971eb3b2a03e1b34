package postprocess

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

type StatusForcer interface {
	ForceStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, source enums.UpdateSource) (*models.Order, error)
}

type PaidEmailQueuer interface {
	QueuePaidEmail(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// RecoveryRequest identifies one order. The first identifier that matches wins,
// checked in field order.
type RecoveryRequest struct {
	OrderID      string
	PreferenceID string
	PaymentID    string
	ForcePaid    bool
}

type RecoveryResult struct {
	OrderID       uuid.UUID
	Status        enums.OrderStatus
	Forced        bool
	Queued        bool
	AlreadyQueued bool
}

type RecoveryParams struct {
	Orders orders.Repository
	Store  StatusForcer
	Emails PaidEmailQueuer
	Logger *logger.Logger
}

// Recovery is the operator path for orders whose paid email never went out.
type Recovery struct {
	orders orders.Repository
	store  StatusForcer
	emails PaidEmailQueuer
	logg   *logger.Logger
}

func NewRecovery(params RecoveryParams) (*Recovery, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Emails == nil {
		return nil, fmt.Errorf("paid email queuer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recovery{
		orders: params.Orders,
		store:  params.Store,
		emails: params.Emails,
		logg:   params.Logger,
	}, nil
}

// ResendPaidEmail locates the order, optionally forces it to paid, then runs
// the paid-email path. Repeated calls never enqueue a second message.
func (r *Recovery) ResendPaidEmail(ctx context.Context, req RecoveryRequest) (*RecoveryResult, error) {
	order, err := r.locate(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = r.logg.WithOrderID(ctx, order.ID.String())
	alreadyQueued := order.PostProcess.EmailPaidQueued

	result := &RecoveryResult{OrderID: order.ID, AlreadyQueued: alreadyQueued}
	if req.ForcePaid && order.Status != enums.OrderStatusPaid {
		if _, err := r.store.ForceStatus(ctx, order.ID, enums.OrderStatusPaid, enums.UpdateSourceAdmin); err != nil {
			if !orders.IsPostProcessError(err) {
				return nil, err
			}
			r.logg.Warn(r.logg.WithField(ctx, "reason", err.Error()), "forced paid status committed with post-processing failure")
		}
		result.Forced = true
	}

	if _, err := r.emails.QueuePaidEmail(ctx, order.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue paid email")
	}

	current, err := r.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	result.Status = current.Status
	result.Queued = !alreadyQueued && current.PostProcess.EmailPaidQueued

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"status":         result.Status,
		"forced":         result.Forced,
		"queued":         result.Queued,
		"already_queued": result.AlreadyQueued,
	}), "paid email recovery completed")
	return result, nil
}

func (r *Recovery) locate(ctx context.Context, req RecoveryRequest) (*models.Order, error) {
	orderID := strings.TrimSpace(req.OrderID)
	preferenceID := strings.TrimSpace(req.PreferenceID)
	paymentID := strings.TrimSpace(req.PaymentID)
	if orderID == "" && preferenceID == "" && paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId, preferenceId or paymentId is required")
	}

	// An orderId that is not a uuid cannot match; the next identifier is tried.
	if id, err := uuid.Parse(orderID); err == nil {
		if order, err := found(r.orders.FindByID(ctx, id)); order != nil || err != nil {
			return order, err
		}
	} else if orderID != "" {
		r.logg.Warn(r.logg.WithField(ctx, "order_id_input", orderID), "recovery orderId is not a uuid")
	}
	if preferenceID != "" {
		if order, err := found(r.orders.FindByPreferenceID(ctx, preferenceID)); order != nil || err != nil {
			return order, err
		}
	}
	if paymentID != "" {
		if order, err := found(r.orders.FindByPaymentID(ctx, paymentID)); order != nil || err != nil {
			return order, err
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// found turns a not-found lookup into (nil, nil) so the next identifier is tried.
func found(order *models.Order, err error) (*models.Order, error) {
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}
