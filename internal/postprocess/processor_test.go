package postprocess

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/internal/analytics"
	"github.com/josima5/venda-projetos-sub001/internal/cron"
	"github.com/josima5/venda-projetos-sub001/internal/customers"
	"github.com/josima5/venda-projetos-sub001/internal/mail"
	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db/dbtest"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

type flakyMail struct {
	next MailEnqueuer
	fail bool
}

func (f *flakyMail) Enqueue(ctx context.Context, tx *gorm.DB, name enums.MailTemplate, order models.Order) (bool, error) {
	if f.fail {
		return false, errors.New("queue unavailable")
	}
	return f.next.Enqueue(ctx, tx, name, order)
}

type recorder struct {
	mu   sync.Mutex
	rows []analytics.Transition
}

func (r *recorder) RecordTransition(_ context.Context, t analytics.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, t)
	return nil
}

type harness struct {
	db        *gorm.DB
	store     *orders.Store
	processor *Processor
	mail      *flakyMail
	recorder  *recorder
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client := dbtest.Client(t)
	orderRepo := orders.NewRepository(client.DB())

	renderer, err := mail.NewRenderer(config.MailConfig{From: "Venda <no-reply@example.com>"})
	require.NoError(t, err)
	dispatcher, err := mail.NewDispatcher(renderer, mail.NewRepository(client.DB()))
	require.NoError(t, err)
	aggregator, err := customers.NewAggregator(orderRepo, customers.NewRepository(client.DB()), client)
	require.NoError(t, err)

	flaky := &flakyMail{next: dispatcher}
	rec := &recorder{}
	processor, err := NewProcessor(Params{
		Orders:    orderRepo,
		Tx:        client,
		Mail:      flaky,
		Customers: aggregator,
		Recorder:  rec,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)

	store, err := orders.NewStore(orders.StoreParams{
		Repo:    orderRepo,
		Tx:      client,
		Hook:    processor,
		Logger:  logger.Nop(),
		Gateway: "mercadopago",
	})
	require.NoError(t, err)

	return harness{db: client.DB(), store: store, processor: processor, mail: flaky, recorder: rec}
}

func (h harness) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order := &models.Order{
		ProjectID:    "casa-terrea",
		ProjectTitle: "Casa térrea",
		BasePrice:    decimal.RequireFromString("500.00"),
		AddonsTotal:  decimal.Zero,
		Total:        decimal.RequireFromString("500.00"),
		Customer:     models.OrderCustomer{Name: "Ana Lima", Email: "Ana@Example.com"},
	}
	require.NoError(t, h.store.Create(context.Background(), order))
	return order
}

func (h harness) pay(t *testing.T, order *models.Order) (*models.Order, error) {
	t.Helper()
	amount := decimal.RequireFromString("500.00")
	return h.store.ApplyPaymentUpdate(context.Background(), orders.PaymentUpdate{
		OrderID:          order.ID,
		Status:           enums.OrderStatusPaid,
		RawStatus:        "approved",
		GatewayPaymentID: "pay-1",
		Amount:           &amount,
		Source:           enums.UpdateSourceWebhook,
	})
}

func (h harness) mailRows(t *testing.T, tmpl enums.MailTemplate) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.MailMessage{}).Where("template = ?", tmpl).Count(&count).Error)
	return count
}

func TestCreationRecordsHistoryWithoutEmail(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	history, err := h.store.Repo().ListTransitions(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.OrderStatus(""), history[0].FromStatus)
	assert.Equal(t, enums.OrderStatusPending, history[0].ToStatus)

	assert.Zero(t, h.mailRows(t, enums.MailTemplatePending))

	stored, err := h.store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.PostProcess.CustomerLinked)
}

func TestAttachPreferenceQueuesReceivedEmailOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	for i := 0; i < 2; i++ {
		_, err := h.store.AttachPreference(ctx, order.ID, "pref-1", "https://pay.example.com/pref-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), h.mailRows(t, enums.MailTemplatePending))

	stored, err := h.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.PostProcess.EmailPendingQueued)
}

func TestPaidTransitionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	for i := 0; i < 3; i++ {
		_, err := h.pay(t, order)
		require.NoError(t, err)
	}

	stored, err := h.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	assert.True(t, stored.PostProcess.PaidHandled)
	assert.True(t, stored.Fulfillment.Released)
	require.NotNil(t, stored.Fulfillment.ReleasedAt)
	require.NotNil(t, stored.PaidAt)
	releasedAt := *stored.Fulfillment.ReleasedAt

	require.NoError(t, h.processor.OnOrderWrite(ctx, orders.WriteEvent{OrderID: order.ID, Prior: stored, New: *stored, Source: enums.UpdateSourceReconcile}))

	history, err := h.store.Repo().ListTransitions(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, enums.OrderStatusPending, history[1].FromStatus)
	assert.Equal(t, enums.OrderStatusPaid, history[1].ToStatus)

	again, err := h.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, again.Fulfillment.ReleasedAt.Equal(releasedAt))

	customer, err := customers.NewRepository(h.db).FindByID(ctx, "email:ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, customer.OrdersCount)
	assert.True(t, customer.TotalSpent.Equal(decimal.RequireFromString("500.00")))
}

func TestPaidEmailExactlyOnceAcrossTriggerAndFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.pay(t, order)
	require.NoError(t, err)
	_, err = h.pay(t, order)
	require.NoError(t, err)

	queued, err := h.processor.QueuePaidEmail(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, int64(1), h.mailRows(t, enums.MailTemplatePaid))
}

func TestPaidEmailFailureIsReportedAndRecoverable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	h.mail.fail = true
	_, err := h.pay(t, order)
	require.Error(t, err)
	assert.True(t, orders.IsPostProcessError(err))

	stored, err := h.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	assert.True(t, stored.PostProcess.PaidHandled)
	assert.False(t, stored.PostProcess.EmailPaidQueued)
	assert.Zero(t, h.mailRows(t, enums.MailTemplatePaid))

	h.mail.fail = false
	queued, err := h.processor.QueuePaidEmail(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Equal(t, int64(1), h.mailRows(t, enums.MailTemplatePaid))

	queued, err = h.processor.QueuePaidEmail(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestPaidEmailSweepReachesMissedOrderPastPhoneOnlyOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, phone := range []string{"11987654321", "21998765432"} {
		order := &models.Order{
			ProjectID:    "casa-terrea",
			ProjectTitle: "Casa térrea",
			BasePrice:    decimal.RequireFromString("500.00"),
			Total:        decimal.RequireFromString("500.00"),
			Customer:     models.OrderCustomer{Name: "Rui", Phone: phone},
		}
		require.NoError(t, h.store.Create(ctx, order))
		_, err := h.pay(t, order)
		require.NoError(t, err)
	}

	missed := h.createOrder(t)
	h.mail.fail = true
	_, err := h.pay(t, missed)
	require.Error(t, err)
	h.mail.fail = false

	job, err := cron.NewPaidEmailJob(cron.PaidEmailJobParams{
		Logger:    logger.Nop(),
		Orders:    h.store.Repo(),
		Queuer:    h.processor,
		BatchSize: 2,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, int64(1), h.mailRows(t, enums.MailTemplatePaid))
	stored, err := h.store.Get(ctx, missed.ID)
	require.NoError(t, err)
	assert.True(t, stored.PostProcess.EmailPaidQueued)
}

func TestQueuePaidEmailSkipsUnpaidOrders(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	queued, err := h.processor.QueuePaidEmail(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestRefundAfterPaidQueuesRefundEmailAndRecordsTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.pay(t, order)
	require.NoError(t, err)
	_, err = h.store.ApplyPaymentUpdate(ctx, orders.PaymentUpdate{
		OrderID:   order.ID,
		Status:    enums.OrderStatusRefunded,
		RawStatus: "refunded",
		Source:    enums.UpdateSourceWebhook,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), h.mailRows(t, enums.MailTemplateRefunded))

	history, err := h.store.Repo().ListTransitions(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, enums.OrderStatusRefunded, history[2].ToStatus)

	require.Len(t, h.recorder.rows, 3)
	assert.Equal(t, enums.OrderStatusPaid, h.recorder.rows[1].To)
	assert.Equal(t, enums.OrderStatusRefunded, h.recorder.rows[2].To)
}
