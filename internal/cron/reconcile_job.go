package cron

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/gateway"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/metrics"
)

const (
	ReconcileJobName       = "payment_reconcile"
	defaultReconcileMinAge = 10 * time.Minute
	defaultReconcileBatch  = 25
)

type stalePendingReader interface {
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkReconcileChecked(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type paymentSearcher interface {
	SearchPaymentsByExternalReference(ctx context.Context, ref string) ([]gateway.Payment, error)
}

type paymentApplier interface {
	Apply(ctx context.Context, payment gateway.Payment, source enums.UpdateSource) (*models.Order, error)
}

type ReconcileJobParams struct {
	Logger    *logger.Logger
	Orders    stalePendingReader
	Gateway   paymentSearcher
	Payments  paymentApplier
	Metrics   *metrics.PaymentMetrics
	MinAge    time.Duration
	BatchSize int
	Now       func() time.Time
}

// reconcileJob polls the gateway for pending orders whose notification may
// have been lost.
type reconcileJob struct {
	logg      *logger.Logger
	orders    stalePendingReader
	gateway   paymentSearcher
	payments  paymentApplier
	metrics   *metrics.PaymentMetrics
	minAge    time.Duration
	batchSize int
	now       func() time.Time
}

func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment applier required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultReconcileMinAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &reconcileJob{
		logg:      params.Logger,
		orders:    params.Orders,
		gateway:   params.Gateway,
		payments:  params.Payments,
		metrics:   params.Metrics,
		minAge:    minAge,
		batchSize: batch,
		now:       now,
	}, nil
}

func (j *reconcileJob) Name() string { return ReconcileJobName }

// Run never fails because of a single order; those errors are logged and
// aggregated so the remaining orders are still visited.
func (j *reconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.minAge)
	pending, err := j.orders.FindStalePending(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("load stale pending orders: %w", err)
	}

	var errs error
	applied := 0
	visited := make([]uuid.UUID, 0, len(pending))
	for _, order := range pending {
		visited = append(visited, order.ID)
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		ok, err := j.reconcile(orderCtx, order)
		if err != nil {
			j.logg.Error(orderCtx, "reconcile order", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if ok {
			applied++
		}
	}

	// Visited orders go to the back of the next batch.
	if err := j.orders.MarkReconcileChecked(ctx, visited, j.now()); err != nil {
		j.logg.Error(ctx, "stamp reconciled orders", err)
		errs = multierr.Append(errs, err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned": len(pending),
		"applied": applied,
		"failed":  len(multierr.Errors(errs)),
	}), "reconcile sweep finished")
	return nil
}

func (j *reconcileJob) reconcile(ctx context.Context, order models.Order) (bool, error) {
	payments, err := j.gateway.SearchPaymentsByExternalReference(ctx, order.ID.String())
	if err != nil {
		return false, err
	}
	latest, ok := MostRecentPayment(payments)
	if !ok {
		return false, nil
	}
	status := orders.MapGatewayStatus(latest.Status)
	if status == enums.OrderStatusPending {
		return false, nil
	}
	if _, err := j.payments.Apply(ctx, latest, enums.UpdateSourceReconcile); err != nil {
		if orders.IsPostProcessError(err) {
			j.logg.Warn(ctx, "reconciled order but post-processing failed")
		} else {
			return false, err
		}
	}
	j.metrics.IncReconciled(string(status))
	return true, nil
}

// MostRecentPayment picks the payment with the latest creation date. Ties keep
// the gateway's original order.
func MostRecentPayment(payments []gateway.Payment) (gateway.Payment, bool) {
	if len(payments) == 0 {
		return gateway.Payment{}, false
	}
	sorted := make([]gateway.Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].DateCreated.After(sorted[b].DateCreated)
	})
	return sorted[0], true
}
