package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
)

// Repository defines persistence operations for orders and their status history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPreferenceID(ctx context.Context, preferenceID string) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkReconcileChecked(ctx context.Context, ids []uuid.UUID, at time.Time) error
	FindPaidWithoutPaidEmail(ctx context.Context, limit int) ([]models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AppendTransition(ctx context.Context, transition *models.OrderStatusTransition) (bool, error)
	ListTransitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusTransition, error)
}

// TxRunner runs fn in a transaction that is replayed on serialization conflicts.
type TxRunner interface {
	WithTxRetry(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// WriteEvent describes one business write. Prior is nil for the creation write.
type WriteEvent struct {
	OrderID uuid.UUID
	Prior   *models.Order
	New     models.Order
	Source  enums.UpdateSource
}

// IsCreate reports whether the event is the order's creation write.
func (e WriteEvent) IsCreate() bool {
	return e.Prior == nil
}

// StatusChanged reports whether the write moved the order to a new status.
func (e WriteEvent) StatusChanged() bool {
	return e.Prior == nil || e.Prior.Status != e.New.Status
}

// WriteHook is invoked synchronously after every committed business write.
// Implementations must tolerate being invoked more than once for the same state.
type WriteHook interface {
	OnOrderWrite(ctx context.Context, ev WriteEvent) error
}
