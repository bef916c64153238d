package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/pdalogistics-backend/api"
	"github.com/angelmondragon/pdalogistics-backend/api/controllers"
	"github.com/angelmondragon/pdalogistics-backend/api/routes"
	"github.com/angelmondragon/pdalogistics-backend/internal/notifications"
	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db"
	"github.com/angelmondragon/pdalogistics-backend/pkg/instance"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/migrate"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/pdalogistics-backend/pkg/pubsub"
	"github.com/angelmondragon/pdalogistics-backend/pkg/redis"
)

const serviceName = "notification-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg, pubsub.NotificationSubscription)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	admins, err := notifications.ParseAdminIDs(cfg.Notify.AdminUserIDs)
	if err != nil {
		logg.Error(context.Background(), "invalid admin recipients", err)
		os.Exit(1)
	}
	notifier, err := notifications.NewStoreNotifier(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Notifier:     notifier,
		AdminUserIDs: admins,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL, cfg.Eventing.IdempotencyLease)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}
	consumer, err := notifications.NewConsumer(dispatcher, pubsubClient.NotificationSubscription(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"instance":    instance.GetID(),
		"subscription": cfg.PubSub.NotificationSubscription,
	})
	logg.Info(ctx, "starting notification worker")

	ops := routes.NewRouter(routes.Params{
		Env:    cfg.App.Env,
		Logger: logg,
		Checks: []controllers.Check{
			{Name: "database", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
			{Name: "pubsub", Pinger: pubsubClient},
		},
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return consumer.Run(groupCtx) })
	group.Go(func() error { return api.Serve(groupCtx, ":"+cfg.App.Port, ops, logg) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "notification worker shutting down gracefully")
}
