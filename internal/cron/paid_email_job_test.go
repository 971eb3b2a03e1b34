package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

type paidReader struct {
	orders []models.Order
	limit  int
	err    error
}

func (r *paidReader) FindPaidWithoutPaidEmail(_ context.Context, limit int) ([]models.Order, error) {
	r.limit = limit
	return r.orders, r.err
}

type queuerStub struct {
	queued map[uuid.UUID]bool
	fail   uuid.UUID
	calls  []uuid.UUID
}

func (q *queuerStub) QueuePaidEmail(_ context.Context, id uuid.UUID) (bool, error) {
	q.calls = append(q.calls, id)
	if id == q.fail {
		return false, errors.New("smtp relay down")
	}
	if q.queued[id] {
		return false, nil
	}
	q.queued[id] = true
	return true, nil
}

func TestPaidEmailJobQueuesEachCandidate(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	reader := &paidReader{orders: []models.Order{{ID: a}, {ID: b}, {ID: c}}}
	queuer := &queuerStub{queued: map[uuid.UUID]bool{}, fail: b}

	job, err := NewPaidEmailJob(PaidEmailJobParams{Logger: logger.Nop(), Orders: reader, Queuer: queuer, BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, PaidEmailJobName, job.Name())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, reader.limit)
	assert.Equal(t, []uuid.UUID{a, b, c}, queuer.calls)
	assert.True(t, queuer.queued[a])
	assert.True(t, queuer.queued[c])
	assert.False(t, queuer.queued[b])
}

func TestPaidEmailJobFailsWhenListingFails(t *testing.T) {
	job, err := NewPaidEmailJob(PaidEmailJobParams{
		Logger: logger.Nop(),
		Orders: &paidReader{err: errors.New("db down")},
		Queuer: &queuerStub{queued: map[uuid.UUID]bool{}},
	})
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
}

func TestNewPaidEmailJobValidatesParams(t *testing.T) {
	_, err := NewPaidEmailJob(PaidEmailJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
