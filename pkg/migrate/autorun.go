package migrate

import (
	"context"
	"fmt"

	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/logger"
)

type migrator interface {
	AutoMigrate(ctx context.Context, models ...any) error
}

// MaybeRun syncs the schema for the given models when BACKOFFICE_AUTO_MIGRATE
// is set, or always for sqlite databases, which start empty. Production
// schemas are managed outside the services.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client migrator, models ...any) error {
	if !cfg.FeatureFlags.AutoMigrate && !cfg.DB.UsesSQLite() {
		return nil
	}
	if len(models) == 0 {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "models": len(models)})
	logg.Info(ctx, "running schema auto-migration")

	if err := client.AutoMigrate(ctx, models...); err != nil {
		return fmt.Errorf("auto-migrating schema: %w", err)
	}

	logg.Info(ctx, "schema auto-migration completed")
	return nil
}
