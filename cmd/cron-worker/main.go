package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/pdalogistics-backend/api"
	"github.com/angelmondragon/pdalogistics-backend/api/controllers"
	"github.com/angelmondragon/pdalogistics-backend/api/routes"
	"github.com/angelmondragon/pdalogistics-backend/internal/commission"
	"github.com/angelmondragon/pdalogistics-backend/internal/cron"
	"github.com/angelmondragon/pdalogistics-backend/internal/ledger"
	"github.com/angelmondragon/pdalogistics-backend/internal/notifications"
	"github.com/angelmondragon/pdalogistics-backend/internal/orders"
	"github.com/angelmondragon/pdalogistics-backend/internal/verification"
	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db"
	"github.com/angelmondragon/pdalogistics-backend/pkg/instance"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/metrics"
	"github.com/angelmondragon/pdalogistics-backend/pkg/migrate"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox"
	"github.com/angelmondragon/pdalogistics-backend/pkg/redis"
)

const serviceName = "cron-worker"

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

	registry, err := buildJobs(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":   instance.GetID(),
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	ops := routes.NewRouter(routes.Params{
		Env:    cfg.App.Env,
		Logger: logg,
		Checks: []controllers.Check{
			{Name: "database", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
		},
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error { return api.Serve(groupCtx, ":"+cfg.App.Port, ops, logg) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	rates, err := commission.NewTableRateSource(conn, commission.RatesFromConfig(cfg.Commission), logg)
	if err != nil {
		return nil, err
	}
	commissionSvc, err := commission.NewService(commission.ServiceParams{
		Repository:  commission.NewRepository(conn),
		Rates:       rates,
		Ledger:      ledgerSvc,
		Tx:          dbClient,
		Outbox:      outbox.NewService(outboxRepo, logg),
		Logger:      logg,
		GracePeriod: cfg.Commission.GracePeriod,
	})
	if err != nil {
		return nil, err
	}
	verificationSvc, err := verification.NewService(verification.ServiceParams{
		Repository: verification.NewRepository(conn),
		Orders:     orders.NewRepository(conn),
		Tx:         dbClient,
		Limiter:    redisClient,
		Config:     cfg.Verification,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	approval, err := cron.NewCommissionApprovalJob(cron.CommissionApprovalJobParams{
		Logger:     logg,
		Commission: commissionSvc,
		BatchSize:  cfg.Cron.ApprovalBatchSize,
	})
	if err != nil {
		return nil, err
	}
	otpCleanup, err := cron.NewOTPCleanupJob(cron.OTPCleanupJobParams{
		Logger:       logg,
		Verification: verificationSvc,
		Retention:    cfg.Cron.OTPRetention,
	})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(conn),
		Retention:  cfg.Cron.NotifyRetention,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(approval, otpCleanup, outboxRetention, notificationCleanup), nil
}
