// Package gateway talks to the payment provider's REST API: checkout
// preferences, payment lookups and payment search by external reference.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/retry"
)

const (
	defaultBaseURL        = "https://api.mercadopago.com"
	defaultTimeout        = 10 * time.Second
	responseBodyReadLimit = 2048
)

var errAccessTokenRequired = errors.New("gateway access token is required")

// Client wraps the gateway endpoints used by checkout, webhooks and reconciliation.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	retry       *retry.Executor
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-attempt timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRetry overrides the retry policy applied to every call.
func WithRetry(executor *retry.Executor) Option {
	return func(c *Client) {
		if executor != nil {
			c.retry = executor
		}
	}
}

// NewClient builds the gateway client for the given access token.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	client := &Client{
		accessToken: token,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.retry == nil {
		client.retry = retry.New(retry.Options{})
	}
	return client, nil
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.Status, e.Body)
}

// HTTPStatus exposes the upstream status for retry classification.
func (e *APIError) HTTPStatus() int {
	return e.Status
}

// IsNotFound reports whether err is a gateway 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// CreatePreference creates a payable checkout session. req.IdempotencyKey is
// sent as X-Idempotency-Key so replays return the same preference.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference requires at least one item")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal preference request")
	}

	headers := http.Header{}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		headers.Set("X-Idempotency-Key", key)
	}

	var out Preference
	if err := c.call(ctx, "create preference", http.MethodPost, c.buildURL("checkout/preferences"), payload, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches the authoritative state of one payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var raw paymentPayload
	endpoint := c.buildURL("v1/payments/" + url.PathEscape(trimmed))
	if err := c.call(ctx, "get payment", http.MethodGet, endpoint, nil, nil, &raw); err != nil {
		return nil, err
	}
	payment := raw.toPayment()
	return &payment, nil
}

// SearchPaymentsByExternalReference lists the payments created against the
// given external reference.
func (c *Client) SearchPaymentsByExternalReference(ctx context.Context, ref string) ([]Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	q := url.Values{}
	q.Set("external_reference", trimmed)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")
	endpoint := c.buildURL("v1/payments/search") + "?" + q.Encode()

	var raw struct {
		Results []paymentPayload `json:"results"`
	}
	if err := c.call(ctx, "search payments", http.MethodGet, endpoint, nil, nil, &raw); err != nil {
		return nil, err
	}

	payments := make([]Payment, 0, len(raw.Results))
	for _, r := range raw.Results {
		payments = append(payments, r.toPayment())
	}
	return payments, nil
}

func (c *Client) call(ctx context.Context, op, method, endpoint string, body []byte, headers http.Header, out any) error {
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
		httpReq.Header.Set("Accept", "application/json")
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		for k, vals := range headers {
			for _, v := range vals {
				httpReq.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
			return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" failed")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
