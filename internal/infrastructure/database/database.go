package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported driver names, as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// defaultMaxOpenConns applies to postgres when none is configured.
	defaultMaxOpenConns = 10
)

// DB wraps a sql.DB connection with compliance store functionality.
// It provides migration support, placeholder rebinding for the active
// dialect, health checks, and lifecycle management.
type DB struct {
	*sql.DB
	driver string
	path   string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Driver is "sqlite3" or "postgres". Empty means sqlite3.
	Driver string

	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a SQLite lock (seconds).
	BusyTimeout int

	// DSN is the lib/pq connection string used when Driver is postgres.
	DSN string

	// MaxOpenConns caps the postgres pool. SQLite always uses one connection.
	MaxOpenConns int
}

// Open creates a new database connection with the specified configuration.
//
// For SQLite it:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode, busy timeout and foreign keys
//  4. Sets file permissions (0600)
//
// For PostgreSQL it opens a pool against cfg.DSN.
// In both cases the connection is verified with a ping bounded by ctx.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return openSQLite(ctx, cfg)
	case DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, cfg Config) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open(DriverSQLite, connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, driver: DriverSQLite, path: cfg.Path}
	if err := db.verify(ctx); err != nil {
		return nil, err
	}

	// File might not exist yet on first run
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Best effort

	return db, nil
}

func openPostgres(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres driver requires a DSN")
	}

	sqlDB, err := sql.Open(DriverPostgres, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, driver: DriverPostgres}
	if err := db.verify(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.DB.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("verifying database connection: %w", err)
	}
	return nil
}

// Wrap adapts an already-open *sql.DB. It is used by tests that drive the
// stores through go-sqlmock, and by callers that manage their own pool.
func Wrap(sqlDB *sql.DB, driver string) *DB {
	return &DB{DB: sqlDB, driver: driver}
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the SQLite database file, or "" for postgres.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Rebind converts ? placeholders to the active dialect. SQLite queries are
// returned unchanged; PostgreSQL queries get $1..$n. Queries must not carry
// literal question marks.
func (db *DB) Rebind(query string) string {
	return Rebind(db.driver, query)
}

// Rebind converts ? placeholders for the given driver.
func Rebind(driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext executes a query that doesn't return rows (INSERT, UPDATE, DELETE).
// Placeholders are rebound for the active dialect.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// QueryRowContext executes a query that returns at most one row.
// Placeholders are rebound for the active dialect.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Rebind(query), args...)
}

// QueryContext executes a query that returns rows.
// Placeholders are rebound for the active dialect.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Rebind(query), args...)
}

// BeginTx starts a new transaction with the given options.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if committed
//
//	// ... execute queries on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
