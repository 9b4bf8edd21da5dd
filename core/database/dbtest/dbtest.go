// Package dbtest opens throwaway SQLite databases carrying the real schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	coredatabase "github.com/ewaproduct/ewabot/core/database"
	"github.com/ewaproduct/ewabot/migrations"
)

// Open migrates a fresh database in t's temp dir and closes it on cleanup.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	cfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
	if err := coredatabase.RunMigrations(cfg, migrations.FS, migrations.Dir(cfg.Driver)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := coredatabase.Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
