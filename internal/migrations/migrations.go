package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
)

//go:embed sql/*.sql
var files embed.FS

// All returns the index schema migrations in apply order.
func All() ([]db.Migration, error) {
	return db.MigrationsFromFS(files, "sql", "cardano_")
}

// RunMigrations opens the configured database and brings its schema up to date.
func RunMigrations(cfg config.DatabaseConfig) error {
	sqlDB, err := db.NewSQLiteDBFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("error creating DB %w", err)
	}
	defer sqlDB.Close()

	return RunMigrationsDB(logger.GetDefaultLogger().WithComponent(common.ComponentStore), sqlDB)
}

// RunMigrationsDB brings the schema of an open database up to date.
func RunMigrationsDB(log *logger.Logger, sqlDB *sql.DB) error {
	migrations, err := All()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	return db.RunMigrationsDB(log, sqlDB, migrations)
}
