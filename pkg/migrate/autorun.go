package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

// MaybeRunDev prepares the schema at process start when VENDA_DB_AUTO_MIGRATE is
// set. sqlite is always built from the models. Postgres runs the embedded
// goose files in dev only; other environments use cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	ctx = logg.WithFields(ctx, map[string]any{"driver": cfg.DB.Driver, "env": cfg.App.Env})
	switch {
	case !cfg.DB.AutoMigrate:
		return nil
	case cfg.DB.IsSQLite():
		logg.Info(ctx, "building sqlite schema from models")
		return AutoMigrateModels(ctx, client)
	case !cfg.App.IsDev():
		logg.Info(ctx, "skipping goose auto-run outside dev")
		return nil
	}

	version, err := Up(ctx, client)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "version", version), "schema up to date")
	return nil
}

// AutoMigrateModels creates or alters the order tables from the gorm models.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}
	return nil
}

// Up applies every pending embedded migration and returns the resulting
// schema version.
func Up(ctx context.Context, client *db.Client) (int64, error) {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return 0, fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
