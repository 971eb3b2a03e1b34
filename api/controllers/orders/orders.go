package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josima5/venda-projetos-sub001/api/middleware"
	"github.com/josima5/venda-projetos-sub001/api/responses"
	"github.com/josima5/venda-projetos-sub001/api/validators"
	internalorders "github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

type Canceler interface {
	Cancel(ctx context.Context, id uuid.UUID, userID string) (*models.Order, error)
}

type cancelRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}

// Cancel lets the authenticated owner cancel one of their pending orders.
func Cancel(svc Canceler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid orderId"))
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		if _, err := svc.Cancel(ctx, orderID, userID); err != nil {
			if !internalorders.IsPostProcessError(err) {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			logg.Warn(ctx, "order canceled but post-processing failed")
		}

		responses.WriteOK(w)
	}
}
