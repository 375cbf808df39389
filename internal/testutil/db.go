// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"database/sql"
	"path"
	"testing"

	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/migrations"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new temporary SQLite database with the index schema.
func NewTestDB(t *testing.T, dbName string) *sql.DB {
	t.Helper()

	database, _ := NewTestDBWithPath(t, dbName)
	return database
}

// NewTestDBWithPath is NewTestDB that also returns the database file path.
func NewTestDBWithPath(t *testing.T, dbName string) (*sql.DB, string) {
	t.Helper()

	tmpDBPath := path.Join(t.TempDir(), dbName)

	dbConfig := config.DatabaseConfig{Path: tmpDBPath, EnableForeignKeys: true}
	dbConfig.ApplyDefaults()

	require.NoError(t, migrations.RunMigrations(dbConfig))

	database, err := db.NewSQLiteDBFromConfig(dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database, tmpDBPath
}

// CountRows returns the number of rows of every index table.
func CountRows(t *testing.T, database *sql.DB) map[string]int {
	t.Helper()

	counts := make(map[string]int)
	for _, table := range []string{
		"block", "tx", "address", "native_asset", "tx_output",
		"tx_input", "asset_transfer", "dex_mean_price", "dex_swap",
	} {
		var n int
		require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		counts[table] = n
	}
	return counts
}
