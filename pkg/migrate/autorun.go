package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/schoolpay-backend/pkg/config"
	"github.com/angelmondragon/schoolpay-backend/pkg/db"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to the embedded schema on boot when
// SCHOOLPAY_AUTO_MIGRATE is set. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, cfg.DB.Driver, Embedded(), logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "driver", cfg.DB.Driver)
	pending, err := runner.Pending(ctx)
	if err != nil {
		return fmt.Errorf("checking pending migrations: %w", err)
	}
	if !pending {
		logg.Info(ctx, "migrate.auto_run.up_to_date")
		return nil
	}

	logg.Info(ctx, "migrate.auto_run.start")
	if err := runner.Apply(ctx, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.auto_run.done")
	return nil
}
