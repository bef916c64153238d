package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/pdalogistics-backend/api"
	"github.com/angelmondragon/pdalogistics-backend/api/controllers"
	"github.com/angelmondragon/pdalogistics-backend/api/routes"
	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/migrate"
	"github.com/angelmondragon/pdalogistics-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	router := routes.NewRouter(routes.Params{
		Env:    cfg.App.Env,
		Logger: logg,
		Checks: []controllers.Check{
			{Name: "database", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.Serve(ctx, ":"+cfg.App.Port, router, logg); err != nil {
		logg.Error(ctx, "server failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api shutting down gracefully")
}
