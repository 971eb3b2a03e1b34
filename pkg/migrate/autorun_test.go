package migrate_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/migrate"
)

func sqliteClient(t *testing.T) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	return db.NewFromGorm(conn)
}

func TestMaybeRunDevBuildsSQLiteSchema(t *testing.T) {
	client := sqliteClient(t)
	cfg := &config.Config{DB: config.DBConfig{Driver: config.DBDriverSQLite, AutoMigrate: true}}

	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), client))
	for _, model := range models.All() {
		assert.True(t, client.DB().Migrator().HasTable(model), "%T", model)
	}
}

func TestMaybeRunDevDisabled(t *testing.T) {
	client := sqliteClient(t)
	cfg := &config.Config{DB: config.DBConfig{Driver: config.DBDriverSQLite}}

	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), client))
	assert.False(t, client.DB().Migrator().HasTable(&models.Order{}))
}

func TestMaybeRunDevSkipsPostgresOutsideDev(t *testing.T) {
	cfg := &config.Config{
		App: config.AppConfig{Env: "prod"},
		DB:  config.DBConfig{Driver: "postgres", AutoMigrate: true},
	}
	// The client is never touched on this path.
	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), nil))
}
