package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS is set by the migrations package to embed migration files.
// Each dialect keeps its own files in a subdirectory of MigrationsDir:
//
//	sqlite/20260301_090000_compliance_schema.up.sql
//	postgres/20260301_090000_compliance_schema.up.sql
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS holding the dialect
// subdirectories. Set to "." if they are at the root of the embedded filesystem.
var MigrationsDir = "migrations"

// dialectDir maps a driver name to its migrations subdirectory.
func dialectDir(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Migration is one schema change, identified by the YYYYMMDD_HHMMSS prefix
// of its file names.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies every pending migration of the active dialect, oldest
// first, each in its own transaction. A failing migration is rolled back
// and stops the run; earlier ones stay committed, so re-running Migrate
// after a fix resumes where it stopped.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	_, pending, err := db.migrationState(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				db.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
				m.Version, time.Now().UTC().Format(time.RFC3339),
			); err != nil {
				return fmt.Errorf("recording migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. It is a no-op
// when nothing has been applied.
func (db *DB) MigrateDown(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	version := applied[len(applied)-1].Version

	available, err := loadMigrations(db.driver)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	idx := sort.Search(len(available), func(i int) bool { return available[i].Version >= version })
	if idx == len(available) || available[idx].Version != version {
		return fmt.Errorf("migration %s not found in filesystem", version)
	}
	m := available[idx]
	if m.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", version)
	}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			db.Rebind("DELETE FROM schema_migrations WHERE version = ?"), m.Version,
		); err != nil {
			return fmt.Errorf("removing migration record: %w", err)
		}
		return nil
	})
}

// GetMigrationStatus returns the applied and pending migrations for the active dialect.
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return nil, nil, err
	}
	return db.migrationState(ctx)
}

// migrationState splits the dialect's migrations into applied and pending.
func (db *DB) migrationState(ctx context.Context) ([]MigrationRecord, []Migration, error) {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}

	available, err := loadMigrations(db.driver)
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}

	var pending []Migration
	for _, m := range available {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) ensureMigrationsTable(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	return nil
}

// appliedMigrations lists schema_migrations in version order.
func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var (
			r         MigrationRecord
			appliedAt string
		)
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // written by Migrate
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// migrationFile is a parsed migration file name.
type migrationFile struct {
	version string
	name    string
	up      bool
}

// parseMigrationFile parses "YYYYMMDD_HHMMSS_name.up.sql" and the matching
// ".down.sql" form.
func parseMigrationFile(filename string) (migrationFile, bool) {
	base, ok := strings.CutSuffix(filename, ".sql")
	if !ok {
		return migrationFile{}, false
	}

	var f migrationFile
	if rest, isUp := strings.CutSuffix(base, ".up"); isUp {
		f.up, base = true, rest
	} else if rest, isDown := strings.CutSuffix(base, ".down"); isDown {
		base = rest
	} else {
		return migrationFile{}, false
	}

	date, rest, ok := strings.Cut(base, "_")
	if !ok {
		return migrationFile{}, false
	}
	clock, name, _ := strings.Cut(rest, "_")
	f.version = date + "_" + clock
	f.name = name
	if f.name == "" {
		f.name = base
	}
	return f, true
}

// loadMigrations reads the dialect's migrations from MigrationsFS, sorted
// by version. Only versions with an up file are returned.
func loadMigrations(driver string) ([]Migration, error) {
	if MigrationsFS == (embed.FS{}) {
		return nil, nil
	}

	dir := path.Join(MigrationsDir, dialectDir(driver))
	entries, err := fs.ReadDir(MigrationsFS, dir)
	if err != nil {
		return nil, nil //nolint:nilerr // a dialect without a directory has no migrations
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, ok := parseMigrationFile(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(MigrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[f.version]
		if m == nil {
			m = &Migration{Version: f.version, Name: f.name}
			byVersion[f.version] = m
		}
		if f.up {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL != "" {
			migrations = append(migrations, *m)
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
