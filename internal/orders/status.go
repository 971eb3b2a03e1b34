package orders

import (
	"strings"

	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/gateway"
)

// MapGatewayStatus translates a raw gateway payment status into an order status.
// Unknown statuses map to pending.
func MapGatewayStatus(raw string) enums.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case gateway.StatusApproved:
		return enums.OrderStatusPaid
	case gateway.StatusRejected, gateway.StatusCancelled:
		return enums.OrderStatusCanceled
	case gateway.StatusRefunded:
		return enums.OrderStatusRefunded
	case gateway.StatusChargedBack:
		return enums.OrderStatusChargeback
	default:
		return enums.OrderStatusPending
	}
}

// CanTransition reports whether a payment-driven write may move an order from
// one status to another. Rewriting the same status is always allowed.
func CanTransition(from, to enums.OrderStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case enums.OrderStatusPending:
		return to.IsValid()
	case enums.OrderStatusPaid:
		return to == enums.OrderStatusRefunded || to == enums.OrderStatusChargeback
	}
	return false
}
