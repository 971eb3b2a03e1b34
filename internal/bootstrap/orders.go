// Package bootstrap assembles the order pipeline shared by the api and the
// sweeper processes.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/josima5/venda-projetos-sub001/internal/analytics"
	"github.com/josima5/venda-projetos-sub001/internal/customers"
	"github.com/josima5/venda-projetos-sub001/internal/mail"
	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/internal/payments"
	"github.com/josima5/venda-projetos-sub001/internal/postprocess"
	pkgbigquery "github.com/josima5/venda-projetos-sub001/pkg/bigquery"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/gateway"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/retry"
)

// OrderStack holds the wired order services.
type OrderStack struct {
	Gateway   *gateway.Client
	Repo      orders.Repository
	Store     *orders.Store
	Processor *postprocess.Processor
	Payments  *payments.Service
	Recovery  *postprocess.Recovery

	transitions *analytics.Writer
	bigquery    *pkgbigquery.Client
}

// NewOrderStack builds the gateway client, the order store with its
// post-processing hook and the services layered on top of it. Transition
// analytics are attached only when BigQuery is configured.
func NewOrderStack(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) (*OrderStack, error) {
	if cfg == nil || logg == nil || client == nil {
		return nil, fmt.Errorf("config, logger and database client required")
	}

	gw, err := NewGatewayClient(cfg.Gateway)
	if err != nil {
		return nil, err
	}

	renderer, err := mail.NewRenderer(cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("creating mail renderer: %w", err)
	}
	dispatcher, err := mail.NewDispatcher(renderer, mail.NewRepository(client.DB()))
	if err != nil {
		return nil, fmt.Errorf("creating mail dispatcher: %w", err)
	}

	repo := orders.NewRepository(client.DB())
	aggregator, err := customers.NewAggregator(repo, customers.NewRepository(client.DB()), client)
	if err != nil {
		return nil, fmt.Errorf("creating customer aggregator: %w", err)
	}

	stack := &OrderStack{Gateway: gw, Repo: repo}

	var recorder postprocess.TransitionRecorder
	if cfg.BigQuery.Enabled() {
		bq, err := pkgbigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return nil, fmt.Errorf("creating bigquery client: %w", err)
		}
		writer, err := analytics.NewWriter(bq, analytics.Config{Table: cfg.BigQuery.TransitionsTable})
		if err != nil {
			_ = bq.Close()
			return nil, fmt.Errorf("creating transitions writer: %w", err)
		}
		stack.bigquery = bq
		stack.transitions = writer
		recorder = writer
	}

	processor, err := postprocess.NewProcessor(postprocess.Params{
		Orders:    repo,
		Tx:        client,
		Mail:      dispatcher,
		Customers: aggregator,
		Recorder:  recorder,
		Logger:    logg,
	})
	if err != nil {
		return nil, stack.closeAfter(ctx, fmt.Errorf("creating post-processor: %w", err))
	}
	stack.Processor = processor

	store, err := orders.NewStore(orders.StoreParams{
		Repo:    repo,
		Tx:      client,
		Hook:    processor,
		Logger:  logg,
		Gateway: cfg.Gateway.Name,
	})
	if err != nil {
		return nil, stack.closeAfter(ctx, fmt.Errorf("creating order store: %w", err))
	}
	stack.Store = store

	paymentService, err := payments.NewService(payments.ServiceParams{
		Gateway: gw,
		Orders:  store,
		Logger:  logg,
	})
	if err != nil {
		return nil, stack.closeAfter(ctx, fmt.Errorf("creating payment service: %w", err))
	}
	stack.Payments = paymentService

	recovery, err := postprocess.NewRecovery(postprocess.RecoveryParams{
		Orders: repo,
		Store:  store,
		Emails: processor,
		Logger: logg,
	})
	if err != nil {
		return nil, stack.closeAfter(ctx, fmt.Errorf("creating paid email recovery: %w", err))
	}
	stack.Recovery = recovery

	return stack, nil
}

// NewGatewayClient builds the payment gateway client from config.
func NewGatewayClient(cfg config.GatewayConfig) (*gateway.Client, error) {
	gw, err := gateway.NewClient(cfg.AccessToken,
		gateway.WithBaseURL(cfg.BaseURL),
		gateway.WithTimeout(cfg.Timeout),
		gateway.WithRetry(retry.New(retry.Options{
			MaxAttempts: cfg.MaxAttempts,
			BaseBackoff: cfg.BaseBackoff,
		})),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway client: %w", err)
	}
	return gw, nil
}

// Close flushes buffered transitions and releases the BigQuery client.
func (s *OrderStack) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var err error
	if s.transitions != nil {
		err = multierr.Append(err, s.transitions.Flush(ctx))
	}
	if s.bigquery != nil {
		err = multierr.Append(err, s.bigquery.Close())
	}
	return err
}

func (s *OrderStack) closeAfter(ctx context.Context, err error) error {
	return multierr.Append(err, s.Close(ctx))
}
