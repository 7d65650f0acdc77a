package compliance

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-compliance/migrations" // registers embedded schema
)

// openTestDB opens a migrated SQLite database in a temp directory.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "compliance.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	require.NoError(t, db.Migrate(ctx))
	return db
}

// newMockDB wraps a go-sqlmock connection as a database handle for the given dialect.
func newMockDB(t *testing.T, driver string) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() }) //nolint:errcheck // test cleanup

	return database.Wrap(sqlDB, driver), mock
}

// fixedClock returns a clock that advances one second per call. It is safe
// for concurrent use.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// stores builds the three SQL stores over one database.
func stores(db *database.DB) (*SQLLedger, *SQLViolationStore, *SQLAttemptTracker) {
	clock := fixedClock()
	l := NewSQLLedger(db)
	l.now = clock
	v := NewSQLViolationStore(db)
	v.now = clock
	a := NewSQLAttemptTracker(db)
	a.now = clock
	return l, v, a
}
