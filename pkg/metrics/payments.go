package metrics

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcomes.
const (
	WebhookProcessed    = "processed"
	WebhookIgnored      = "ignored"
	WebhookUnauthorized = "unauthorized"
	WebhookFailed       = "failed"
)

// PaymentMetrics counts payment notifications and reconciliation writes.
type PaymentMetrics struct {
	webhooks   *prometheus.CounterVec
	reconciled *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment counters on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Payment notifications by outcome.",
	}, []string{"outcome"})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_applied_total",
		Help: "Gateway statuses applied by the reconciliation sweep.",
	}, []string{"status"})
	reg.MustRegister(webhooks, reconciled)
	return &PaymentMetrics{webhooks: webhooks, reconciled: reconciled}
}

// IncWebhook counts one notification with the given outcome.
func (m *PaymentMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncReconciled counts one reconciliation write landing on status.
func (m *PaymentMetrics) IncReconciled(status string) {
	if m == nil || m.reconciled == nil {
		return
	}
	m.reconciled.WithLabelValues(normalizeLabel(status)).Inc()
}
