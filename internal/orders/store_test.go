package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/db/dbtest"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

type recordingHook struct {
	events []WriteEvent
	err    error
}

func (h *recordingHook) OnOrderWrite(_ context.Context, ev WriteEvent) error {
	h.events = append(h.events, ev)
	return h.err
}

func newTestStore(t *testing.T, hook WriteHook) (*Store, *db.Client) {
	t.Helper()
	client := dbtest.Client(t)
	store, err := NewStore(StoreParams{
		Repo:    NewRepository(client.DB()),
		Tx:      client,
		Hook:    hook,
		Logger:  logger.Nop(),
		Gateway: "mercadopago",
	})
	require.NoError(t, err)
	return store, client
}

func newOrder(owner *string) *models.Order {
	return &models.Order{
		ProjectID:    "casa-terrea",
		ProjectTitle: "Casa térrea 3 quartos",
		OwnerUserID:  owner,
		BasePrice:    decimal.RequireFromString("150.00"),
		Addons:       types.OrderAddons{{ID: "eletrico", Label: "Projeto elétrico", Price: decimal.RequireFromString("50.00")}},
		AddonsTotal:  decimal.RequireFromString("50.00"),
		Total:        decimal.RequireFromString("200.00"),
		Customer:     models.OrderCustomer{Name: "Maria", Email: "maria@example.com"},
	}
}

func TestStoreCreateFiresHookWithoutPrior(t *testing.T) {
	hook := &recordingHook{}
	store, _ := newTestStore(t, hook)

	order := newOrder(nil)
	require.NoError(t, store.Create(context.Background(), order))

	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, hook.events, 1)
	assert.True(t, hook.events[0].IsCreate())
	assert.Equal(t, enums.UpdateSourceCheckout, hook.events[0].Source)
}

func TestStoreCreateRejectsNonPositiveTotal(t *testing.T) {
	store, _ := newTestStore(t, nil)
	order := newOrder(nil)
	order.Total = decimal.Zero

	err := store.Create(context.Background(), order)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApplyPaymentUpdateMergesFieldsAndStatus(t *testing.T) {
	hook := &recordingHook{}
	store, _ := newTestStore(t, hook)
	ctx := context.Background()

	order := newOrder(nil)
	require.NoError(t, store.Create(ctx, order))

	amount := decimal.RequireFromString("200.00")
	updated, err := store.ApplyPaymentUpdate(ctx, PaymentUpdate{
		OrderID:          order.ID,
		Status:           enums.OrderStatusPaid,
		RawStatus:        "approved",
		GatewayPaymentID: "987",
		Amount:           &amount,
		Installments:     2,
		Source:           enums.UpdateSourceWebhook,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, updated.Status)
	require.NotNil(t, updated.Payment.GatewayPaymentID)
	assert.Equal(t, "987", *updated.Payment.GatewayPaymentID)
	assert.Equal(t, "approved", updated.Payment.RawStatus)
	assert.Equal(t, 2, updated.Payment.Installments)
	assert.Equal(t, "mercadopago", updated.Payment.Gateway)

	require.Len(t, hook.events, 2)
	ev := hook.events[1]
	require.NotNil(t, ev.Prior)
	assert.Equal(t, enums.OrderStatusPending, ev.Prior.Status)
	assert.Equal(t, enums.OrderStatusPaid, ev.New.Status)
	assert.True(t, ev.StatusChanged())
}

func TestApplyPaymentUpdateKeepsStatusOnDisallowedEdge(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	order := newOrder(nil)
	require.NoError(t, store.Create(ctx, order))
	_, err := store.ApplyPaymentUpdate(ctx, PaymentUpdate{OrderID: order.ID, Status: enums.OrderStatusPaid, RawStatus: "approved", GatewayPaymentID: "111", Source: enums.UpdateSourceWebhook})
	require.NoError(t, err)

	updated, err := store.ApplyPaymentUpdate(ctx, PaymentUpdate{
		OrderID:          order.ID,
		Status:           enums.OrderStatusCanceled,
		RawStatus:        "rejected",
		StatusDetail:     "cc_rejected_other_reason",
		GatewayPaymentID: "222",
		Source:           enums.UpdateSourceReconcile,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, updated.Status)
	assert.Equal(t, "approved", updated.Payment.RawStatus)
	assert.Empty(t, updated.Payment.StatusDetail)
	require.NotNil(t, updated.Payment.GatewayPaymentID)
	assert.Equal(t, "111", *updated.Payment.GatewayPaymentID)
}

func TestApplyPaymentUpdateUnknownOrder(t *testing.T) {
	store, _ := newTestStore(t, nil)
	_, err := store.ApplyPaymentUpdate(context.Background(), PaymentUpdate{OrderID: uuid.New(), Status: enums.OrderStatusPaid})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestHookFailureIsReportedAfterCommit(t *testing.T) {
	hook := &recordingHook{}
	store, _ := newTestStore(t, hook)
	ctx := context.Background()

	order := newOrder(nil)
	require.NoError(t, store.Create(ctx, order))

	hook.err = errors.New("mail queue down")
	updated, err := store.ApplyPaymentUpdate(ctx, PaymentUpdate{OrderID: order.ID, Status: enums.OrderStatusPaid, RawStatus: "approved", Source: enums.UpdateSourceWebhook})
	require.Error(t, err)
	assert.True(t, IsPostProcessError(err))
	require.NotNil(t, updated)

	reloaded, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}

func TestCancel(t *testing.T) {
	owner := "user-1"
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	order := newOrder(&owner)
	require.NoError(t, store.Create(ctx, order))

	_, err := store.Cancel(ctx, order.ID, "user-2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	canceled, err := store.Cancel(ctx, order.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, canceled.Status)

	_, err = store.Cancel(ctx, order.ID, owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = store.Cancel(ctx, uuid.New(), owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCancelOrderWithoutOwnerIsForbidden(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()
	order := newOrder(nil)
	require.NoError(t, store.Create(ctx, order))

	_, err := store.Cancel(ctx, order.ID, "anyone")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestForceStatusBypassesEdgeRules(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()
	order := newOrder(nil)
	require.NoError(t, store.Create(ctx, order))
	_, err := store.ApplyPaymentUpdate(ctx, PaymentUpdate{OrderID: order.ID, Status: enums.OrderStatusCanceled, RawStatus: "rejected"})
	require.NoError(t, err)

	forced, err := store.ForceStatus(ctx, order.ID, enums.OrderStatusPaid, enums.UpdateSourceAdmin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, forced.Status)
}

func TestRepositoryFindStalePendingHonorsAgeAndLimit(t *testing.T) {
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 30; i++ {
		o := newOrder(nil)
		o.ID = uuid.New()
		o.Status = enums.OrderStatusPending
		o.CreatedAt = now.Add(-time.Hour - time.Duration(i)*time.Minute)
		require.NoError(t, repo.Create(ctx, o))
	}
	for i := 0; i < 5; i++ {
		o := newOrder(nil)
		o.ID = uuid.New()
		o.Status = enums.OrderStatusPending
		o.CreatedAt = now.Add(-time.Minute)
		require.NoError(t, repo.Create(ctx, o))
	}
	paid := newOrder(nil)
	paid.ID = uuid.New()
	paid.Status = enums.OrderStatusPaid
	paid.CreatedAt = now.Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, paid))

	stale, err := repo.FindStalePending(ctx, now.Add(-10*time.Minute), 25)
	require.NoError(t, err)
	require.Len(t, stale, 25)
	for i, o := range stale {
		assert.Equal(t, enums.OrderStatusPending, o.Status)
		assert.True(t, o.CreatedAt.Before(now.Add(-10*time.Minute)))
		if i > 0 {
			assert.False(t, o.CreatedAt.Before(stale[i-1].CreatedAt), "expected oldest first")
		}
	}
}

func TestRepositoryFindStalePendingPrefersUncheckedOrders(t *testing.T) {
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	var abandoned []uuid.UUID
	for i := 0; i < 3; i++ {
		o := newOrder(nil)
		o.ID = uuid.New()
		o.Status = enums.OrderStatusPending
		o.CreatedAt = now.Add(-time.Duration(5+i) * time.Hour)
		require.NoError(t, repo.Create(ctx, o))
		abandoned = append(abandoned, o.ID)
	}
	fresh := newOrder(nil)
	fresh.ID = uuid.New()
	fresh.Status = enums.OrderStatusPending
	fresh.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, fresh))

	before, err := repo.FindByID(ctx, abandoned[0])
	require.NoError(t, err)
	require.NoError(t, repo.MarkReconcileChecked(ctx, abandoned, now.Add(-time.Minute)))

	stale, err := repo.FindStalePending(ctx, now.Add(-10*time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, fresh.ID, stale[0].ID)
	require.NotNil(t, stale[1].ReconcileCheckedAt)

	after, err := repo.FindByID(ctx, abandoned[0])
	require.NoError(t, err)
	require.NotNil(t, after.ReconcileCheckedAt)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))
}

func TestRepositoryFindPaidWithoutPaidEmailSkipsOrdersWithoutEmail(t *testing.T) {
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	phoneOnly := newOrder(nil)
	phoneOnly.ID = uuid.New()
	phoneOnly.Status = enums.OrderStatusPaid
	phoneOnly.Customer = models.OrderCustomer{Name: "Rui", Phone: "11987654321"}
	require.NoError(t, repo.Create(ctx, phoneOnly))

	emailed := newOrder(nil)
	emailed.ID = uuid.New()
	emailed.Status = enums.OrderStatusPaid
	require.NoError(t, repo.Create(ctx, emailed))

	found, err := repo.FindPaidWithoutPaidEmail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, emailed.ID, found[0].ID)
}

func TestRepositoryAppendTransitionIsIdempotentPerEdge(t *testing.T) {
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	order := newOrder(nil)
	order.ID = uuid.New()
	order.Status = enums.OrderStatusPending
	require.NoError(t, repo.Create(ctx, order))

	edge := func() *models.OrderStatusTransition {
		return &models.OrderStatusTransition{OrderID: order.ID, FromStatus: enums.OrderStatusPending, ToStatus: enums.OrderStatusPaid, Reason: "payment_approved"}
	}
	inserted, err := repo.AppendTransition(ctx, edge())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.AppendTransition(ctx, edge())
	require.NoError(t, err)
	assert.False(t, inserted)

	history, err := repo.ListTransitions(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRepositoryLookupsByGatewayIDs(t *testing.T) {
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	pref, pay := "pref-1", "pay-1"
	order := newOrder(nil)
	order.ID = uuid.New()
	order.Status = enums.OrderStatusPending
	order.Payment.PreferenceID = &pref
	order.Payment.GatewayPaymentID = &pay
	require.NoError(t, repo.Create(ctx, order))

	byPref, err := repo.FindByPreferenceID(ctx, pref)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byPref.ID)

	byPay, err := repo.FindByPaymentID(ctx, pay)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byPay.ID)

	_, err = repo.FindByPaymentID(ctx, "missing")
	assert.True(t, db.IsNotFound(err))
}
