package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

type schemaMigrator interface {
	AutoMigrate(ctx context.Context) error
}

// MaybeRunDev syncs the schema from the models when running in dev (or on
// SQLite) with PDA_AUTO_MIGRATE set. Production schemas are managed out of band.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client schemaMigrator) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if !cfg.App.IsDev() && !cfg.FeatureFlags.UseSQLite {
		logg.Warn(ctx, "auto migrate requested outside dev; skipping")
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})
	logg.Info(ctx, "auto migrating schema")
	if err := client.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("dev auto migrate: %w", err)
	}
	logg.Info(ctx, "schema up to date")
	return nil
}
