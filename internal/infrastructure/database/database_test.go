package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), Config{
			Path:        dbPath,
			WALMode:     true,
			BusyTimeout: 5,
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Driver() != DriverSQLite {
			t.Errorf("Driver() = %q, want %q", db.Driver(), DriverSQLite)
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), Config{Driver: DriverSQLite, Path: dbPath, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{Driver: "mysql"}); err == nil {
			t.Error("Open() expected error for unsupported driver")
		}
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{Driver: DriverPostgres}); err == nil {
			t.Error("Open() expected error for missing DSN")
		}
	})
}

// TestRebind verifies placeholder conversion per dialect.
func TestRebind(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		query  string
		want   string
	}{
		{
			name:   "sqlite unchanged",
			driver: DriverSQLite,
			query:  "SELECT id FROM compliance_records WHERE device_id = ? AND policy_id = ?",
			want:   "SELECT id FROM compliance_records WHERE device_id = ? AND policy_id = ?",
		},
		{
			name:   "postgres numbered",
			driver: DriverPostgres,
			query:  "SELECT id FROM compliance_records WHERE device_id = ? AND policy_id = ?",
			want:   "SELECT id FROM compliance_records WHERE device_id = $1 AND policy_id = $2",
		},
		{
			name:   "postgres without placeholders",
			driver: DriverPostgres,
			query:  "SELECT 1",
			want:   "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.driver, tt.query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestHealthCheck verifies the health check functionality.
func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestClose verifies graceful shutdown.
func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

// TestExecContext verifies query execution.
func TestExecContext(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE test_table (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"); err != nil {
		t.Fatalf("ExecContext() CREATE error = %v", err)
	}

	result, err := db.ExecContext(ctx, "INSERT INTO test_table (name) VALUES (?)", "test")
	if err != nil {
		t.Fatalf("ExecContext() INSERT error = %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("LastInsertId() error = %v", err)
	}
	if id != 1 {
		t.Errorf("LastInsertId() = %v, want 1", id)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO missing_table (name) VALUES (?)", "x"); err == nil {
		t.Error("ExecContext() expected error for missing table")
	}
}

// TestBeginTx verifies transaction commit and rollback.
func TestBeginTx(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", "committed"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", "rolled_back"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tx_test").Scan(&count); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

// TestStats verifies stats are returned.
func TestStats(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	stats := db.Stats()
	if stats.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %v, want 1 (SQLite single writer)", stats.MaxOpenConnections)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	return db
}
