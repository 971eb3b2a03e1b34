// Package analytics streams order status transitions into BigQuery.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgbigquery "github.com/josima5/venda-projetos-sub001/pkg/bigquery"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/retry"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Transition is one observed order status change.
type Transition struct {
	OrderID    uuid.UUID
	From       enums.OrderStatus
	To         enums.OrderStatus
	Amount     decimal.Decimal
	Source     enums.UpdateSource
	PaymentID  string
	RawStatus  string
	OccurredAt time.Time
}

// TransitionRow mirrors the order_transitions BigQuery schema.
type TransitionRow struct {
	EventID     string             `bigquery:"event_id"`
	OrderID     string             `bigquery:"order_id"`
	FromStatus  string             `bigquery:"from_status"`
	ToStatus    string             `bigquery:"to_status"`
	AmountCents int64              `bigquery:"amount_cents"`
	Source      string             `bigquery:"source"`
	OccurredAt  time.Time          `bigquery:"occurred_at"`
	Payload     cbigquery.NullJSON `bigquery:"payload"`
}

// Config controls the writer behavior.
type Config struct {
	Table       string
	BatchSize   int
	RetryPolicy RetryPolicy
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer inserts transition rows into BigQuery with retries and optional batching.
type Writer struct {
	client    tableInserter
	table     string
	batchSize int
	retry     *retry.Executor

	mu     sync.Mutex
	buffer []TransitionRow
}

func NewWriter(client *pkgbigquery.Client, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*Writer, error) {
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("transitions table is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	policy := cfg.RetryPolicy
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = defaultInitialBackoff
	}
	if policy.MaximumBackoff < policy.InitialBackoff {
		policy.MaximumBackoff = defaultMaximumBackoff
	}

	return &Writer{
		client:    client,
		table:     table,
		batchSize: batchSize,
		retry: retry.New(retry.Options{
			MaxAttempts: policy.MaxAttempts,
			BaseBackoff: policy.InitialBackoff,
			MaxBackoff:  policy.MaximumBackoff,
			Transient:   isRetryableBigQueryError,
		}),
	}, nil
}

// RecordTransition buffers one transition row and flushes when the batch is full.
func (w *Writer) RecordTransition(ctx context.Context, t Transition) error {
	row, err := toRow(t)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) >= w.batchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

// Flush writes any buffered rows immediately.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.buffer))
	for i := range w.buffer {
		rows[i] = &w.buffer[i]
	}

	err := w.retry.Do(ctx, func(ctx context.Context) error {
		return w.client.InsertRows(ctx, w.table, rows)
	})
	if err != nil {
		return fmt.Errorf("insert %s rows: %w", w.table, err)
	}
	w.buffer = nil
	return nil
}

func toRow(t Transition) (TransitionRow, error) {
	payload, err := EncodeJSON(map[string]any{
		"payment_id": t.PaymentID,
		"raw_status": t.RawStatus,
		"amount":     t.Amount.StringFixed(2),
	})
	if err != nil {
		return TransitionRow{}, err
	}
	occurredAt := t.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return TransitionRow{
		EventID:     uuid.NewString(),
		OrderID:     t.OrderID.String(),
		FromStatus:  string(t.From),
		ToStatus:    string(t.To),
		AmountCents: t.Amount.Shift(2).Round(0).IntPart(),
		Source:      string(t.Source),
		OccurredAt:  occurredAt.UTC(),
		Payload:     payload,
	}, nil
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var pme *cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if pme == nil || len(*pme) == 0 {
			return false
		}
		for _, rowErr := range *pme {
			if !isRetryableBigQueryError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			return isRetryableGRPCCode(st.Code())
		}
	}

	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}

// EncodeJSON serializes payload for a BigQuery JSON column.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		if len(value) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}, nil
	}

	marshaled, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(marshaled)}, nil
}
