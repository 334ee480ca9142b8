package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/isdelr/listings-be/internal/database"
)

// RunWhile runs an in-memory SQLite database while the provided test is
// executing. The schema is already applied.
func RunWhile(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	if err := database.Migrate(ctx, db, database.DriverSQLite); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}
