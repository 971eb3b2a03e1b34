package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/josima5/venda-projetos-sub001/internal/mail"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/instance"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/migrate"
	"github.com/josima5/venda-projetos-sub001/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "mail-relay"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "mail-relay"

	logg = logger.New(logger.Options{
		ServiceName: "mail-relay",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]string{"instance": instance.ID("mail-relay"), "env": cfg.App.Env},
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	publisher := newGCPPublisher(pubsubClient.MailPublisher())
	if publisher == nil {
		logg.Error(context.Background(), "mail topic not configured", errors.New("no mail publisher"))
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg.MailRelay,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: mail.NewRepository(dbClient.DB()),
		Publisher:  publisher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create mail relay", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"topic":       cfg.PubSub.MailTopic,
	})
	logg.Info(ctx, "starting mail relay")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "mail relay stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "mail relay shutting down gracefully")
}
