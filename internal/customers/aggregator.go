// Package customers keeps one aggregate row per buyer identity and folds each
// paid order into it exactly once.
package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

// Result describes what one aggregation pass did.
type Result struct {
	CustomerKey string
	Counted     bool
}

type Aggregator struct {
	orders    orders.Repository
	customers Repository
	tx        orders.TxRunner
	now       func() time.Time
}

func NewAggregator(orderRepo orders.Repository, customerRepo Repository, tx orders.TxRunner) (*Aggregator, error) {
	if orderRepo == nil || customerRepo == nil {
		return nil, fmt.Errorf("orders and customers repositories required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Aggregator{
		orders:    orderRepo,
		customers: customerRepo,
		tx:        tx,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Aggregate links the order to its customer row and, on the order's first
// observed paid state, adds it to the customer's totals.
func (a *Aggregator) Aggregate(ctx context.Context, orderID uuid.UUID) (Result, error) {
	var result Result
	err := a.tx.WithTxRetry(ctx, func(tx *gorm.DB) error {
		result = Result{}
		orderRepo := a.orders.WithTx(tx)
		customerRepo := a.customers.WithTx(tx)

		order, err := orderRepo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		key := Identity(order.Customer.Email, order.Customer.Phone)
		if key == "" {
			return nil
		}
		result.CustomerKey = key

		if err := customerRepo.InsertIfAbsent(ctx, &models.Customer{ID: key}); err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
		customer, err := customerRepo.FindByIDForUpdate(ctx, key)
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}

		address := customer.Address.Merge(order.Customer.Address)
		updates := map[string]any{
			"name":               types.PickString(order.Customer.Name, customer.Name),
			"email":              types.PickString(order.Customer.Email, customer.Email),
			"phone":              types.PickString(order.Customer.Phone, customer.Phone),
			"tax_id":             types.PickString(order.Customer.TaxID, customer.TaxID),
			"address_zip":        address.Zip,
			"address_street":     address.Street,
			"address_number":     address.Number,
			"address_complement": address.Complement,
			"address_district":   address.District,
			"address_city":       address.City,
			"address_state":      address.State,
		}

		count := order.Status == enums.OrderStatusPaid && !order.PostProcess.AggPaidCounted
		if count {
			lastOrderAt := a.now()
			if order.PaidAt != nil {
				lastOrderAt = order.PaidAt.UTC()
			}
			updates["orders_count"] = customer.OrdersCount + 1
			updates["total_spent"] = customer.TotalSpent.Add(paidAmount(order))
			updates["last_order_at"] = lastOrderAt
		}
		if err := customerRepo.Update(ctx, key, updates); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}

		orderUpdates := map[string]any{}
		if !order.PostProcess.CustomerLinked {
			orderUpdates["pp_customer_linked"] = true
		}
		if order.CustomerKey == nil || *order.CustomerKey != key {
			orderUpdates["customer_key"] = key
		}
		if count {
			orderUpdates["pp_agg_paid_counted"] = true
		}
		if err := orderRepo.Update(ctx, orderID, orderUpdates); err != nil {
			return fmt.Errorf("link order: %w", err)
		}
		result.Counted = count
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// Get loads one customer aggregate by key.
func (a *Aggregator) Get(ctx context.Context, key string) (*models.Customer, error) {
	return a.customers.FindByID(ctx, key)
}

func paidAmount(order *models.Order) decimal.Decimal {
	if order.Payment.Amount != nil && order.Payment.Amount.IsPositive() {
		return *order.Payment.Amount
	}
	return order.Total
}
