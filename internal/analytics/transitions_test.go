package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/josima5/venda-projetos-sub001/pkg/enums"
)

type insertCall struct {
	table string
	rows  []any
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rows: rows})
	idx := len(f.calls) - 1
	if idx < len(f.responses) {
		return f.responses[idx]
	}
	return nil
}

func newTestWriter(t *testing.T, batch int) (*Writer, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	w, err := newWriter(fake, Config{
		Table:     "order_transitions",
		BatchSize: batch,
		RetryPolicy: RetryPolicy{
			InitialBackoff: time.Millisecond,
			MaximumBackoff: 2 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return w, fake
}

func sampleTransition() Transition {
	return Transition{
		OrderID:    uuid.New(),
		From:       enums.OrderStatusPending,
		To:         enums.OrderStatusPaid,
		Amount:     decimal.RequireFromString("1234.56"),
		Source:     enums.UpdateSourceWebhook,
		PaymentID:  "987",
		RawStatus:  "approved",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewWriterValidation(t *testing.T) {
	_, err := NewWriter(nil, Config{Table: "order_transitions"})
	require.Error(t, err)

	_, err = newWriter(&fakeInserter{}, Config{Table: " "})
	require.Error(t, err)
}

func TestRecordTransitionWritesRow(t *testing.T) {
	w, fake := newTestWriter(t, 1)
	tr := sampleTransition()

	require.NoError(t, w.RecordTransition(context.Background(), tr))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "order_transitions", fake.calls[0].table)
	require.Len(t, fake.calls[0].rows, 1)

	row := fake.calls[0].rows[0].(*TransitionRow)
	assert.Equal(t, tr.OrderID.String(), row.OrderID)
	assert.Equal(t, "pending", row.FromStatus)
	assert.Equal(t, "paid", row.ToStatus)
	assert.Equal(t, int64(123456), row.AmountCents)
	assert.Equal(t, "webhook", row.Source)
	require.True(t, row.Payload.Valid)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.Payload.JSONVal), &payload))
	assert.Equal(t, "987", payload["payment_id"])
}

func TestRecordTransitionRetriesTransientErrors(t *testing.T) {
	w, fake := newTestWriter(t, 1)
	fake.responses = []error{&googleapi.Error{Code: http.StatusServiceUnavailable}, nil}

	require.NoError(t, w.RecordTransition(context.Background(), sampleTransition()))
	assert.Len(t, fake.calls, 2)
}

func TestRecordTransitionStopsOnPermanentErrors(t *testing.T) {
	w, fake := newTestWriter(t, 1)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	require.Error(t, w.RecordTransition(context.Background(), sampleTransition()))
	assert.Len(t, fake.calls, 1)
}

func TestWriterBatchesAndFlushes(t *testing.T) {
	w, fake := newTestWriter(t, 3)
	ctx := context.Background()

	require.NoError(t, w.RecordTransition(ctx, sampleTransition()))
	require.NoError(t, w.RecordTransition(ctx, sampleTransition()))
	assert.Empty(t, fake.calls)

	require.NoError(t, w.Flush(ctx))
	require.Len(t, fake.calls, 1)
	assert.Len(t, fake.calls[0].rows, 2)

	require.NoError(t, w.Flush(ctx))
	assert.Len(t, fake.calls, 1)
}

func TestIsRetryableBigQueryError(t *testing.T) {
	assert.True(t, isRetryableBigQueryError(status.Error(codes.Unavailable, "down")))
	assert.False(t, isRetryableBigQueryError(status.Error(codes.InvalidArgument, "bad")))
	assert.True(t, isRetryableBigQueryError(&cbigquery.MultiError{&googleapi.Error{Code: http.StatusBadGateway}}))
	assert.False(t, isRetryableBigQueryError(errors.New("boom")))
}
