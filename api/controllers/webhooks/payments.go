package webhooks

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/josima5/venda-projetos-sub001/api/responses"
	"github.com/josima5/venda-projetos-sub001/internal/payments"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/metrics"
)

const maxNotificationBytes = 64 << 10

type PaymentNotificationService interface {
	HandleNotification(ctx context.Context, n payments.Notification) (payments.Outcome, error)
}

type webhookCounter interface {
	IncWebhook(outcome string)
}

// PaymentWebhook receives gateway payment notifications. Any failure after the
// secret check answers 500 so the gateway redelivers.
func PaymentWebhook(svc PaymentNotificationService, secret string, counter webhookCounter, logg *logger.Logger) http.HandlerFunc {
	if counter == nil {
		counter = (*metrics.PaymentMetrics)(nil)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			counter.IncWebhook(metrics.WebhookFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		if secret != "" && !secretMatches(r.URL.Query().Get("secret"), secret) {
			counter.IncWebhook(metrics.WebhookUnauthorized)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
		if err != nil {
			counter.IncWebhook(metrics.WebhookFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		notification := payments.ParseNotification(body, r.URL.Query())
		ctx = logg.WithFields(ctx, map[string]any{
			"notification_type": notification.Type,
			"payment_id":        notification.PaymentID,
		})

		outcome, err := svc.HandleNotification(ctx, notification)
		if err != nil {
			counter.IncWebhook(metrics.WebhookFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		counter.IncWebhook(string(outcome))
		logg.Info(logg.WithField(ctx, "outcome", outcome), "payment notification handled")
		responses.WriteOK(w)
	}
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
