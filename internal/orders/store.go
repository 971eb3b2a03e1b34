package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

// PostProcessError reports that the business write committed but the write
// hook failed. Callers that can be redelivered should surface it.
type PostProcessError struct {
	OrderID uuid.UUID
	Err     error
}

func (e *PostProcessError) Error() string {
	return fmt.Sprintf("post-process order %s: %v", e.OrderID, e.Err)
}

func (e *PostProcessError) Unwrap() error {
	return e.Err
}

// IsPostProcessError reports whether err only concerns the write hook.
func IsPostProcessError(err error) bool {
	var ppErr *PostProcessError
	return errors.As(err, &ppErr)
}

// PaymentUpdate is a gateway-reported payment state to merge onto an order.
type PaymentUpdate struct {
	OrderID          uuid.UUID
	Status           enums.OrderStatus
	RawStatus        string
	StatusDetail     string
	GatewayPaymentID string
	Amount           *decimal.Decimal
	PaidAt           *time.Time
	Method           string
	Installments     int
	Source           enums.UpdateSource
}

type StoreParams struct {
	Repo   Repository
	Tx     TxRunner
	Hook   WriteHook
	Logger *logger.Logger
	// Gateway is recorded on every payment write.
	Gateway string
	Now     func() time.Time
}

// Store performs business writes on orders and fires the write hook after
// each one commits.
type Store struct {
	repo    Repository
	tx      TxRunner
	hook    WriteHook
	logg    *logger.Logger
	gateway string
	now     func() time.Time
}

func NewStore(params StoreParams) (*Store, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		repo:    params.Repo,
		tx:      params.Tx,
		hook:    params.Hook,
		logg:    params.Logger,
		gateway: params.Gateway,
		now:     now,
	}, nil
}

// Repo exposes the underlying repository for read paths.
func (s *Store) Repo() Repository {
	return s.repo
}

// Get loads one order by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, id)
	}
	return order, nil
}

// Create inserts a new pending order.
func (s *Store) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if !order.Total.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total must be greater than zero")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := s.now()
	order.Status = enums.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Payment.Installments <= 0 {
		order.Payment.Installments = 1
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return s.fire(ctx, WriteEvent{OrderID: order.ID, New: *order, Source: enums.UpdateSourceCheckout})
}

// AttachPreference records the gateway preference created for the order.
func (s *Store) AttachPreference(ctx context.Context, id uuid.UUID, preferenceID, initPoint string) (*models.Order, error) {
	return s.write(ctx, id, enums.UpdateSourceCheckout, func(prior *models.Order) (map[string]any, error) {
		return map[string]any{
			"payment_preference_id": preferenceID,
			"payment_init_point":    initPoint,
			"payment_gateway":       s.gateway,
		}, nil
	})
}

// ApplyPaymentUpdate merges gateway payment fields onto the order. The status
// moves only along allowed edges. A rejected edge leaves the stored payment
// record untouched so it keeps describing the stored status.
func (s *Store) ApplyPaymentUpdate(ctx context.Context, update PaymentUpdate) (*models.Order, error) {
	if !update.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", update.Status)
	}
	return s.write(ctx, update.OrderID, update.Source, func(prior *models.Order) (map[string]any, error) {
		if !CanTransition(prior.Status, update.Status) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"from_status": prior.Status,
				"to_status":   update.Status,
				"raw_status":  update.RawStatus,
				"payment_id":  update.GatewayPaymentID,
				"source":      update.Source,
			}), "order status edge not allowed; update ignored")
			return nil, nil
		}

		updates := map[string]any{
			"status":             update.Status,
			"payment_gateway":    s.gateway,
			"payment_raw_status": update.RawStatus,
		}
		if update.StatusDetail != "" {
			updates["payment_status_detail"] = update.StatusDetail
		}
		if update.GatewayPaymentID != "" {
			updates["payment_gateway_payment_id"] = update.GatewayPaymentID
		}
		if update.Amount != nil {
			updates["payment_amount"] = *update.Amount
		}
		if update.PaidAt != nil {
			updates["payment_paid_at"] = update.PaidAt.UTC()
		}
		if update.Method != "" {
			updates["payment_method"] = update.Method
		}
		if update.Installments > 0 {
			updates["payment_installments"] = update.Installments
		}
		return updates, nil
	})
}

// ForceStatus sets the status unconditionally. Reserved for operator recovery.
func (s *Store) ForceStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, source enums.UpdateSource) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}
	return s.write(ctx, id, source, func(prior *models.Order) (map[string]any, error) {
		if prior.Status != status {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"from_status": prior.Status,
				"to_status":   status,
				"source":      source,
			}), "forcing order status")
		}
		return map[string]any{"status": status}, nil
	})
}

// Cancel lets the owning user cancel a pending order.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, userID string) (*models.Order, error) {
	return s.write(ctx, id, enums.UpdateSourceOwner, func(prior *models.Order) (map[string]any, error) {
		if prior.OwnerUserID == nil || *prior.OwnerUserID != userID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if prior.Status != enums.OrderStatusPending {
			return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s and can no longer be canceled", prior.Status).
				WithDetails(map[string]any{"status": prior.Status})
		}
		return map[string]any{"status": enums.OrderStatusCanceled}, nil
	})
}

type mutation func(prior *models.Order) (map[string]any, error)

func (s *Store) write(ctx context.Context, id uuid.UUID, source enums.UpdateSource, mutate mutation) (*models.Order, error) {
	var prior, next *models.Order
	err := s.tx.WithTxRetry(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLookupError(err, id)
		}
		updates, err := mutate(current)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
		}
		updated, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		prior, next = current, updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.fire(ctx, WriteEvent{OrderID: id, Prior: prior, New: *next, Source: source}); err != nil {
		return next, err
	}
	return next, nil
}

func (s *Store) fire(ctx context.Context, ev WriteEvent) error {
	if s.hook == nil {
		return nil
	}
	if err := s.hook.OnOrderWrite(ctx, ev); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, ev.OrderID.String()), "order write hook failed", err)
		return &PostProcessError{OrderID: ev.OrderID, Err: err}
	}
	return nil
}

func mapLookupError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
