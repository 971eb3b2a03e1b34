package controllers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/josima5/venda-projetos-sub001/api/responses"
	"github.com/josima5/venda-projetos-sub001/internal/postprocess"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

type PaidEmailRecovery interface {
	ResendPaidEmail(ctx context.Context, req postprocess.RecoveryRequest) (*postprocess.RecoveryResult, error)
}

type resendPaidEmailResponse struct {
	OK            bool              `json:"ok"`
	OrderID       uuid.UUID         `json:"orderId"`
	Status        enums.OrderStatus `json:"status"`
	ForcedPaid    bool              `json:"forcedPaid"`
	Queued        bool              `json:"queued"`
	AlreadyQueued bool              `json:"alreadyQueued"`
}

// AdminResendPaidEmail reruns the paid-email path for one order. It is gated by
// the admin secret; with no secret configured every call is refused.
func AdminResendPaidEmail(svc PaidEmailRecovery, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recovery service unavailable"))
			return
		}

		query := r.URL.Query()
		if secret == "" || subtle.ConstantTimeCompare([]byte(query.Get("secret")), []byte(secret)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid admin secret"))
			return
		}

		forcePaid, err := parseFlag(query.Get("forcePaid"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "forcePaid must be a boolean"))
			return
		}

		result, err := svc.ResendPaidEmail(r.Context(), postprocess.RecoveryRequest{
			OrderID:      query.Get("orderId"),
			PreferenceID: query.Get("preferenceId"),
			PaymentID:    query.Get("paymentId"),
			ForcePaid:    forcePaid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resendPaidEmailResponse{
			OK:            true,
			OrderID:       result.OrderID,
			Status:        result.Status,
			ForcedPaid:    result.Forced,
			Queued:        result.Queued,
			AlreadyQueued: result.AlreadyQueued,
		})
	}
}

func parseFlag(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
