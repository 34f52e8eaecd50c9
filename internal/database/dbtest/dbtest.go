// Package dbtest provides a migrated in-memory SQLite database for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-notes-api/internal/config"
	"github.com/redmonkez12/go-notes-api/internal/database"
)

// New opens a fresh in-memory database with the full schema applied.
// It is closed automatically when the test ends.
func New(tb testing.TB) *bun.DB {
	tb.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	})
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if _, err := database.Migrate(ctx, db, config.DriverSQLite); err != nil {
		tb.Fatalf("migrate test database: %v", err)
	}

	return db
}
