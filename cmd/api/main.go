package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/josima5/venda-projetos-sub001/api/routes"
	"github.com/josima5/venda-projetos-sub001/internal/bootstrap"
	"github.com/josima5/venda-projetos-sub001/internal/checkout"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/env"
	"github.com/josima5/venda-projetos-sub001/pkg/instance"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/metrics"
	"github.com/josima5/venda-projetos-sub001/pkg/migrate"
	"github.com/josima5/venda-projetos-sub001/pkg/redis"
)

const (
	serviceKind     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]string{"instance": instance.ID(serviceKind), "env": cfg.App.Env},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if redis.Configured(cfg.Redis) {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured, checkout idempotency replay disabled")
	}

	stack, err := bootstrap.NewOrderStack(ctx, cfg, logg, dbClient)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(context.Background()); err != nil {
			logg.Error(context.Background(), "error closing order stack", err)
		}
	}()

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Catalog: checkout.NewCatalogRepository(dbClient.DB()),
		Orders:  stack.Store,
		Gateway: stack.Gateway,
		Logger:  logg,
		Config: checkout.Config{
			NotificationURL:     cfg.Webhook.NotificationURL(),
			FrontendURL:         cfg.Checkout.FrontendURL,
			StatementDescriptor: cfg.Checkout.StatementName,
		},
	})
	if err != nil {
		return err
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:       dbClient,
			Redis:    redisClient,
			Checkout: checkoutService,
			Orders:   stack.Store,
			Payments: stack.Payments,
			Recovery: stack.Recovery,
			Metrics:  metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
			Gatherer: prometheus.DefaultGatherer,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
