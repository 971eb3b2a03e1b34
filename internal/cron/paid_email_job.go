package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

const (
	PaidEmailJobName      = "paid_email_fallback"
	defaultPaidEmailBatch = 25
)

type paidWithoutEmailReader interface {
	FindPaidWithoutPaidEmail(ctx context.Context, limit int) ([]models.Order, error)
}

type paidEmailQueuer interface {
	QueuePaidEmail(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type PaidEmailJobParams struct {
	Logger    *logger.Logger
	Orders    paidWithoutEmailReader
	Queuer    paidEmailQueuer
	BatchSize int
}

// paidEmailJob queues the confirmation email for paid orders the write hook
// failed to cover.
type paidEmailJob struct {
	logg      *logger.Logger
	orders    paidWithoutEmailReader
	queuer    paidEmailQueuer
	batchSize int
}

func NewPaidEmailJob(params PaidEmailJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Queuer == nil {
		return nil, fmt.Errorf("paid email queuer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaidEmailBatch
	}
	return &paidEmailJob{
		logg:      params.Logger,
		orders:    params.Orders,
		queuer:    params.Queuer,
		batchSize: batch,
	}, nil
}

func (j *paidEmailJob) Name() string { return PaidEmailJobName }

func (j *paidEmailJob) Run(ctx context.Context) error {
	candidates, err := j.orders.FindPaidWithoutPaidEmail(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("load paid orders without email: %w", err)
	}

	var errs error
	queued := 0
	for _, order := range candidates {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		ok, err := j.queuer.QueuePaidEmail(orderCtx, order.ID)
		if err != nil {
			j.logg.Error(orderCtx, "queue paid email", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			queued++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned": len(candidates),
		"queued":  queued,
		"failed":  len(multierr.Errors(errs)),
	}), "paid email sweep finished")
	return nil
}
