package testutil

import (
	"testing"

	"gss-go/internal/database"
	"gss-go/internal/database/migrations"
)

// NewTestDatabase creates a new in-memory SQLite database with migrations applied.
// Record IDs are "rec-1", "rec-2", ... and timestamps come from FixedClock.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := migrations.MigrateUp(sqlDB, migrations.DriverSQLite); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	db := database.NewSQLDatabaseFromDB(sqlDB, migrations.DriverSQLite, FixedClock(), NewStubIDGenerator("rec"))

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
