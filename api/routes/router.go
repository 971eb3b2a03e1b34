package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josima5/venda-projetos-sub001/api/controllers"
	ordercontrollers "github.com/josima5/venda-projetos-sub001/api/controllers/orders"
	webhookcontrollers "github.com/josima5/venda-projetos-sub001/api/controllers/webhooks"
	"github.com/josima5/venda-projetos-sub001/api/middleware"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/metrics"
	"github.com/josima5/venda-projetos-sub001/pkg/redis"
)

// Dependencies are the services mounted by the router. Redis and Metrics may
// be nil; the idempotency replay and /metrics are then disabled.
type Dependencies struct {
	DB       db.Pinger
	Redis    *redis.Client
	Checkout controllers.CheckoutService
	Orders   ordercontrollers.Canceler
	Payments webhookcontrollers.PaymentNotificationService
	Recovery controllers.PaidEmailRecovery
	Metrics  *metrics.PaymentMetrics
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{"db": deps.DB}
	var idempotency redis.IdempotencyStore
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
		idempotency = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	origins := cfg.Checkout.AllowedOrigins()

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(deps.Payments, cfg.Webhook.Secret, deps.Metrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowOrigins(origins, logg))
		r.Use(middleware.CORS(origins))

		r.With(
			middleware.OptionalAuth(cfg.JWT, logg),
			middleware.Idempotency(idempotency, cfg.Checkout.IdempotencyTTL, logg),
		).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.With(middleware.Auth(cfg.JWT, logg)).Post("/orders/cancel", ordercontrollers.Cancel(deps.Orders, logg))
	})

	r.Route("/api/admin/orders", func(r chi.Router) {
		resend := controllers.AdminResendPaidEmail(deps.Recovery, cfg.Admin.Secret, logg)
		r.Get("/resend-paid-email", resend)
		r.Post("/resend-paid-email", resend)
	})

	return r
}
