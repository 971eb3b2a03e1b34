package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josima5/venda-projetos-sub001/api/middleware"
	"github.com/josima5/venda-projetos-sub001/api/responses"
	"github.com/josima5/venda-projetos-sub001/api/validators"
	checkoutsvc "github.com/josima5/venda-projetos-sub001/internal/checkout"
	"github.com/josima5/venda-projetos-sub001/internal/customers"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

type CheckoutService interface {
	Create(ctx context.Context, req checkoutsvc.Request) (*checkoutsvc.Result, error)
}

// Checkout creates a pending order for one catalog project and returns the
// gateway redirect for it.
func Checkout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), payload.toServiceRequest(middleware.PrincipalFromContext(r.Context())))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkoutResponse{
			OrderID:      result.OrderID,
			InitPoint:    result.InitPoint,
			PreferenceID: result.PreferenceID,
		})
	}
}

type checkoutRequest struct {
	ProjectID string                 `json:"projectId" validate:"required,max=120"`
	Addons    []checkoutAddonRequest `json:"addons" validate:"max=50,dive"`
	Customer  checkoutCustomer       `json:"customer"`
	Payment   checkoutPayment        `json:"payment"`
}

// Price and label are accepted for client convenience and never read.
type checkoutAddonRequest struct {
	ID    string   `json:"id" validate:"required,max=120"`
	Price *float64 `json:"price,omitempty"`
	Label string   `json:"label,omitempty"`
}

type checkoutCustomer struct {
	Name    string               `json:"name" validate:"required,max=200"`
	Email   string               `json:"email" validate:"omitempty,max=254,email"`
	Phone   string               `json:"phone" validate:"omitempty,max=40,phone"`
	TaxID   string               `json:"taxId" validate:"omitempty,max=32,taxid"`
	Address types.ContactAddress `json:"address"`
}

type checkoutPayment struct {
	Method       string `json:"method" validate:"max=40"`
	Installments int    `json:"installments" validate:"min=0,max=12"`
}

type checkoutResponse struct {
	OrderID      uuid.UUID `json:"orderId"`
	InitPoint    string    `json:"init_point"`
	PreferenceID string    `json:"preferenceId"`
}

// toServiceRequest falls back to the signed-in user's email when the form
// leaves it blank.
func (p checkoutRequest) toServiceRequest(owner middleware.Principal) checkoutsvc.Request {
	addonIDs := make([]string, 0, len(p.Addons))
	for _, addon := range p.Addons {
		addonIDs = append(addonIDs, addon.ID)
	}
	email := validators.NormalizeEmail(p.Customer.Email)
	if email == "" {
		email = validators.NormalizeEmail(owner.Email)
	}
	return checkoutsvc.Request{
		ProjectID: validators.SanitizeString(p.ProjectID, 120),
		AddonIDs:  addonIDs,
		Customer: checkoutsvc.Customer{
			Name:    validators.SanitizeString(p.Customer.Name, 200),
			Email:   email,
			Phone:   customers.DigitsOnly(p.Customer.Phone),
			TaxID:   customers.DigitsOnly(p.Customer.TaxID),
			Address: p.Customer.Address,
		},
		Payment: checkoutsvc.Payment{
			Method:       p.Payment.Method,
			Installments: p.Payment.Installments,
		},
		OwnerUserID: owner.UserID,
	}
}
