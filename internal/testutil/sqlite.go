// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rescan/internal/config"
	"github.com/rescan/internal/storage"
)

// SQLiteConfig returns a database config pointing at a fresh file in a temp dir
func SQLiteConfig(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	return &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "rescan.db")},
	}
}

// NewSQLiteDB returns a migrated SQLite database that is closed when the test ends
func NewSQLiteDB(t *testing.T) *storage.DB {
	t.Helper()

	cfg := SQLiteConfig(t)
	require.NoError(t, storage.RunMigrations(cfg))

	db, err := storage.OpenSQLite(cfg.SQLite.Path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// Context returns a context with a timeout bound to the test
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
