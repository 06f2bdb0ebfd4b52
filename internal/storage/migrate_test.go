package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescan/internal/config"
	"github.com/rescan/internal/storage"
	"github.com/rescan/internal/testutil"
)

func TestMigrations_UpDownVersion(t *testing.T) {
	cfg := testutil.SQLiteConfig(t)

	version, dirty, err := storage.MigrationVersion(cfg)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, storage.RunMigrations(cfg))
	// running again is a no-op
	require.NoError(t, storage.RunMigrations(cfg))

	version, dirty, err = storage.MigrationVersion(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, storage.RollbackMigrations(cfg))

	version, _, err = storage.MigrationVersion(cfg)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestMigrationURL(t *testing.T) {
	url, err := storage.MigrationURL(&config.DatabaseConfig{
		Driver: config.DriverPostgres,
		Postgres: config.PostgresConfig{
			User: "u", Password: "p", Host: "h", Port: "5432", Database: "d", SSLMode: "disable",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@h:5432/d?sslmode=disable", url)

	url, err = storage.MigrationURL(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: "/tmp/x.db"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite3:///tmp/x.db", url)

	_, err = storage.MigrationURL(&config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}
