package compliance

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
)

var errNoDatabase = errors.New("no database handle")

// acquire takes a dedicated connection from the pool for one operation.
// Callers must Close it on every path.
func acquire(ctx context.Context, db *database.DB) (*sql.Conn, error) {
	if db == nil || db.DB == nil {
		return nil, errNoDatabase
	}
	return db.Conn(ctx)
}

// acquireKind classifies a failure to obtain a connection. Only a missing or
// closed handle is ErrConfiguration.
func acquireKind(err error) error {
	switch {
	case errors.Is(err, errNoDatabase), errors.Is(err, sql.ErrConnDone):
		return ErrConfiguration
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrPersistence
	case strings.Contains(err.Error(), "database is closed"):
		// database/sql does not export its closed-handle error.
		return ErrConfiguration
	default:
		return ErrPersistence
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}
