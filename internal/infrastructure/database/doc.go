// Package database provides SQL connectivity for the compliance store.
//
// This package manages:
//   - SQLite connections (WAL mode, busy timeout, foreign keys, STRICT tables)
//   - PostgreSQL connections through lib/pq
//   - Placeholder rebinding so stores write one query for both dialects
//   - Per-dialect schema migrations embedded in the binary
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database file permissions are set to 0600
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Driver: "sqlite3", Path: "./data/compliance.db"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Migrations live under migrations/sqlite and migrations/postgres with matching
// versions. Each file pair is YYYYMMDD_HHMMSS_description.up.sql / .down.sql.
// Migrations are additive-only: new columns must be NULLABLE or have DEFAULTs.
package database
