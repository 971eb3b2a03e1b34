package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/josima5/venda-projetos-sub001/pkg/retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("TEST-token",
		WithBaseURL(srv.URL),
		WithRetry(retry.New(retry.Options{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})),
	)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestCreatePreferenceSendsIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		assert.Equal(t, "order-abc", r.Header.Get("X-Idempotency-Key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "abc", payload["external_reference"])
		_, leaked := payload["IdempotencyKey"]
		assert.False(t, leaked)
		items := payload["items"].([]any)
		assert.EqualValues(t, 150, items[0].(map[string]any)["unit_price"])

		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://pay.example/pref-1"}`))
	})

	pref, err := client.CreatePreference(context.Background(), PreferenceRequest{
		Items:             []Item{{Title: "Projeto", Quantity: 1, UnitPrice: decimal.RequireFromString("150.00"), CurrencyID: "BRL"}},
		ExternalReference: "abc",
		IdempotencyKey:    "order-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://pay.example/pref-1", pref.RedirectURL())
}

func TestGetPaymentRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/v1/payments/123", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":123,"status":"approved","external_reference":"order-1","transaction_amount":199.9,"date_created":"2024-05-01T10:00:00.000-03:00"}`))
	})

	payment, err := client.GetPayment(context.Background(), "123")
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, "123", payment.ID)
	assert.Equal(t, StatusApproved, payment.Status)
	assert.Equal(t, "order-1", payment.ExternalReference)
	require.NotNil(t, payment.Amount)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("199.9")))
	assert.False(t, payment.DateCreated.IsZero())
}

func TestGetPaymentNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Payment not found"}`))
	})

	_, err := client.GetPayment(context.Background(), "999")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSearchPaymentsByExternalReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/search", r.URL.Path)
		assert.Equal(t, "order-9", r.URL.Query().Get("external_reference"))
		_, _ = w.Write([]byte(`{"results":[{"id":"1","status":"pending","external_reference":"order-9"},{"id":2,"status":"approved","external_reference":"order-9"}]}`))
	})

	payments, err := client.SearchPaymentsByExternalReference(context.Background(), "order-9")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "1", payments[0].ID)
	assert.Equal(t, "2", payments[1].ID)
}

func TestNilClientIsDependencyError(t *testing.T) {
	var client *Client
	_, err := client.GetPayment(context.Background(), "1")
	require.Error(t, err)
}
