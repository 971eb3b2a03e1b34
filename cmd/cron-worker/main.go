package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/josima5/venda-projetos-sub001/internal/bootstrap"
	"github.com/josima5/venda-projetos-sub001/internal/cron"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/instance"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/metrics"
	"github.com/josima5/venda-projetos-sub001/pkg/migrate"
	"github.com/josima5/venda-projetos-sub001/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run one sweep cycle and exit, for external schedulers")
	flag.Parse()

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
	ctx = logg.WithField(ctx, "serviceKind", cfg.Service.Kind)

	if err := run(ctx, cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
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

	lock, closeLock, err := sweepLock(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer closeLock()

	stack, err := bootstrap.NewOrderStack(ctx, cfg, logg, dbClient)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(context.Background()); err != nil {
			logg.Error(context.Background(), "error closing order stack", err)
		}
	}()

	reconcile, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:    logg,
		Orders:    stack.Repo,
		Gateway:   stack.Gateway,
		Payments:  stack.Payments,
		Metrics:   metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		MinAge:    cfg.Sweeps.ReconcileMinAge,
		BatchSize: cfg.Sweeps.ReconcileBatchSize,
	})
	if err != nil {
		return err
	}
	paidEmails, err := cron.NewPaidEmailJob(cron.PaidEmailJobParams{
		Logger:    logg,
		Orders:    stack.Repo,
		Queuer:    stack.Processor,
		BatchSize: cfg.Sweeps.PaidEmailBatchSize,
	})
	if err != nil {
		return err
	}

	registry, err := cron.NewRegistry(reconcile, paidEmails)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewSweepMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweeps.Interval,
	})
	if err != nil {
		return err
	}

	if once {
		logg.Info(ctx, "running a single sweep cycle")
		return service.RunOnce(ctx)
	}
	logg.Info(logg.WithField(ctx, "interval", cfg.Sweeps.Interval.String()), "starting cron worker")
	return service.Run(ctx)
}

// sweepLock coordinates replicas through redis when it is configured and falls
// back to an in-process lock for single-instance deployments.
func sweepLock(ctx context.Context, cfg *config.Config, logg *logger.Logger) (cron.Lock, func(), error) {
	if !redis.Configured(cfg.Redis) {
		logg.Warn(ctx, "redis not configured, using in-process sweep lock")
		return &cron.LocalLock{}, func() {}, nil
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, nil, err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("sweeps"), cfg.Sweeps.LockTTL)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}
	return lock, func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}, nil
}
