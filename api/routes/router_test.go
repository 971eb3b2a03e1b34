package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/josima5/venda-projetos-sub001/internal/checkout"
	"github.com/josima5/venda-projetos-sub001/internal/payments"
	"github.com/josima5/venda-projetos-sub001/internal/postprocess"
	pkgauth "github.com/josima5/venda-projetos-sub001/pkg/auth"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCheckout struct{ owner string }

func (s *stubCheckout) Create(_ context.Context, req checkoutsvc.Request) (*checkoutsvc.Result, error) {
	s.owner = req.OwnerUserID
	return &checkoutsvc.Result{OrderID: uuid.New(), InitPoint: "https://pay.example.com", PreferenceID: "pref"}, nil
}

type stubCanceler struct{ userID string }

func (s *stubCanceler) Cancel(_ context.Context, id uuid.UUID, userID string) (*models.Order, error) {
	s.userID = userID
	return &models.Order{ID: id}, nil
}

type stubPayments struct{ calls int }

func (s *stubPayments) HandleNotification(context.Context, payments.Notification) (payments.Outcome, error) {
	s.calls++
	return payments.OutcomeIgnored, nil
}

type stubRecovery struct{ calls int }

func (s *stubRecovery) ResendPaidEmail(context.Context, postprocess.RecoveryRequest) (*postprocess.RecoveryResult, error) {
	s.calls++
	return &postprocess.RecoveryResult{OrderID: uuid.New()}, nil
}

type fixture struct {
	cfg      *config.Config
	handler  http.Handler
	checkout *stubCheckout
	canceler *stubCanceler
	payments *stubPayments
	recovery *stubRecovery
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := &config.Config{
		App:      config.AppConfig{Env: "test"},
		JWT:      config.JWTConfig{Secret: "jwt-secret", Issuer: "venda"},
		Webhook:  config.WebhookConfig{Secret: "hook"},
		Admin:    config.AdminConfig{Secret: "admin"},
		Checkout: config.CheckoutConfig{FrontendURL: "https://loja.example.com", DevOrigins: []string{"http://localhost:5173"}},
	}
	reg := prometheus.NewRegistry()
	f := fixture{
		cfg:      cfg,
		checkout: &stubCheckout{},
		canceler: &stubCanceler{},
		payments: &stubPayments{},
		recovery: &stubRecovery{},
	}
	f.handler = NewRouter(cfg, logger.Nop(), Dependencies{
		DB:       stubPinger{},
		Checkout: f.checkout,
		Orders:   f.canceler,
		Payments: f.payments,
		Recovery: f.recovery,
		Metrics:  metrics.NewPaymentMetrics(reg),
		Gatherer: reg,
	})
	return f
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func (f fixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(f.cfg.JWT, time.Now(), userID, time.Hour)
	require.NoError(t, err)
	return token
}

const checkoutBody = `{"projectId":"casa-terrea","customer":{"name":"Ana"}}`

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
}

func TestResponsesCarryRequestID(t *testing.T) {
	f := newFixture(t)
	resp := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestCheckoutRejectsUnknownOrigin(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req.Header.Set("Origin", "https://evil.example.com")

	resp := f.do(req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Empty(t, f.checkout.owner)
}

func TestCheckoutAllowsFrontendOriginAndAttachesOwner(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req.Header.Set("Origin", "https://loja.example.com")
	req.Header.Set("Authorization", "Bearer "+f.token(t, "user-42"))
	req.Header.Set("Idempotency-Key", "abc")

	resp := f.do(req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "https://loja.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "user-42", f.checkout.owner)
}

func TestCheckoutPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key")

	resp := f.do(req)
	assert.Less(t, resp.Code, 300)
	assert.Equal(t, "http://localhost:5173", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestCancelRequiresBearerToken(t *testing.T) {
	f := newFixture(t)
	body := `{"orderId":"` + uuid.NewString() + `"}`

	resp := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/orders/cancel", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/cancel", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, "user-9"))
	resp = f.do(req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "user-9", f.canceler.userID)
}

func TestWebhookRouteChecksSecret(t *testing.T) {
	f := newFixture(t)

	resp := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments?type=payment&data.id=1", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Zero(t, f.payments.calls)

	resp = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments?secret=hook&type=payment&data.id=1", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, f.payments.calls)

	metricsResp := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metricsResp.Code)
	assert.Contains(t, metricsResp.Body.String(), `payment_webhooks_total{outcome="unauthorized"} 1`)
	assert.Contains(t, metricsResp.Body.String(), `payment_webhooks_total{outcome="ignored"} 1`)
}

func TestAdminResendRouteAcceptsGetAndPost(t *testing.T) {
	f := newFixture(t)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp := f.do(httptest.NewRequest(method, "/api/admin/orders/resend-paid-email?secret=admin&orderId="+uuid.NewString(), nil))
		assert.Equal(t, http.StatusOK, resp.Code, method)
	}
	assert.Equal(t, 2, f.recovery.calls)
}
