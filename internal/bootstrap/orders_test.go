package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db/dbtest"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			BaseURL:     "http://127.0.0.1:1",
			AccessToken: "TEST-token",
			Name:        "mercadopago",
			Timeout:     time.Second,
			MaxAttempts: 1,
		},
		Mail: config.MailConfig{From: "Loja <no-reply@example.com>"},
	}
}

func TestNewOrderStackWiresHookWithoutAnalytics(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Client(t)

	stack, err := NewOrderStack(ctx, testConfig(), logger.Nop(), client)
	require.NoError(t, err)
	require.NotNil(t, stack.Store)
	require.NotNil(t, stack.Payments)
	require.NotNil(t, stack.Recovery)
	assert.Nil(t, stack.transitions)

	order := &models.Order{
		ProjectID:    "casa-terrea",
		ProjectTitle: "Casa térrea",
		BasePrice:    decimal.NewFromInt(100),
		AddonsTotal:  decimal.Zero,
		Total:        decimal.NewFromInt(100),
		Customer:     models.OrderCustomer{Name: "Ana Lima", Email: "ana@example.com"},
	}
	require.NoError(t, stack.Store.Create(ctx, order))

	forced, err := stack.Store.ForceStatus(ctx, order.ID, enums.OrderStatusPaid, enums.UpdateSourceAdmin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, forced.Status)

	var queued int64
	require.NoError(t, client.DB().Model(&models.MailMessage{}).
		Where("template = ?", enums.MailTemplatePaid).
		Count(&queued).Error)
	assert.Equal(t, int64(1), queued)

	assert.NoError(t, stack.Close(ctx))
}

func TestNewOrderStackRequiresGatewayToken(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.AccessToken = " "

	_, err := NewOrderStack(context.Background(), cfg, logger.Nop(), dbtest.Client(t))
	assert.Error(t, err)
}

func TestCloseIsNilSafe(t *testing.T) {
	var stack *OrderStack
	assert.NoError(t, stack.Close(context.Background()))
}
