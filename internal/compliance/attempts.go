package compliance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
)

// AttemptTracker counts consecutive failed monitoring attempts per device.
type AttemptTracker interface {
	// RecordAttempt adds one failed attempt, or resets the counter when
	// succeeded is true.
	RecordAttempt(ctx context.Context, deviceID int64, succeeded bool) error

	// Increment adds one failed attempt and returns the count it produced.
	// Concurrent callers each observe a distinct value.
	Increment(ctx context.Context, deviceID int64) (int, error)

	// Reset sets the counter to zero and stamps the reset time.
	Reset(ctx context.Context, deviceID int64) error

	// GetAttempts returns the current count; 0 for an unknown device.
	GetAttempts(ctx context.Context, deviceID int64) (int, error)

	// Counter returns the full counter; a zero counter for an unknown device.
	Counter(ctx context.Context, deviceID int64) (AttemptCounter, error)
}

// SQLAttemptTracker implements AttemptTracker on the compliance_attempts table.
type SQLAttemptTracker struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLAttemptTracker creates an attempt tracker backed by db.
func NewSQLAttemptTracker(db *database.DB) *SQLAttemptTracker {
	return &SQLAttemptTracker{db: db, now: utcNow}
}

// RecordAttempt increments the counter on failure (creating it at 1) or
// resets it on success.
func (t *SQLAttemptTracker) RecordAttempt(ctx context.Context, deviceID int64, succeeded bool) error {
	if succeeded {
		return t.reset(ctx, "record attempt", deviceID)
	}
	_, err := t.increment(ctx, "record attempt", deviceID)
	return err
}

// Increment adds one failed attempt and returns the stored count.
func (t *SQLAttemptTracker) Increment(ctx context.Context, deviceID int64) (int, error) {
	return t.increment(ctx, "increment attempts", deviceID)
}

func (t *SQLAttemptTracker) increment(ctx context.Context, op string, deviceID int64) (int, error) {
	if deviceID < 0 {
		return 0, deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}

	conn, err := acquire(ctx, t.db)
	if err != nil {
		return 0, deviceError(op, acquireKind(err), deviceID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	var n int
	if err := conn.QueryRowContext(ctx, t.db.Rebind(
		`INSERT INTO compliance_attempts (device_id, attempts, updated_at)
		 VALUES (?, 1, ?)
		 ON CONFLICT (device_id) DO UPDATE
		 SET attempts = compliance_attempts.attempts + 1, updated_at = excluded.updated_at
		 RETURNING attempts`),
		deviceID, formatTimestamp(t.now()),
	).Scan(&n); err != nil {
		return 0, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("incrementing attempts: %w", err))
	}

	return n, nil
}

// Reset zeroes the counter and records the reset time.
func (t *SQLAttemptTracker) Reset(ctx context.Context, deviceID int64) error {
	return t.reset(ctx, "reset attempts", deviceID)
}

func (t *SQLAttemptTracker) reset(ctx context.Context, op string, deviceID int64) error {
	if deviceID < 0 {
		return deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}

	conn, err := acquire(ctx, t.db)
	if err != nil {
		return deviceError(op, acquireKind(err), deviceID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	now := formatTimestamp(t.now())
	if _, err := conn.ExecContext(ctx, t.db.Rebind(
		`INSERT INTO compliance_attempts (device_id, attempts, last_reset, updated_at)
		 VALUES (?, 0, ?, ?)
		 ON CONFLICT (device_id) DO UPDATE
		 SET attempts = 0, last_reset = excluded.last_reset, updated_at = excluded.updated_at`),
		deviceID, now, now,
	); err != nil {
		return deviceError(op, ErrPersistence, deviceID, fmt.Errorf("resetting attempts: %w", err))
	}

	return nil
}

// GetAttempts returns the device's failed attempt count.
func (t *SQLAttemptTracker) GetAttempts(ctx context.Context, deviceID int64) (int, error) {
	c, err := t.counter(ctx, "get attempts", deviceID)
	if err != nil {
		return 0, err
	}
	return c.Attempts, nil
}

// Counter returns the device's attempt counter.
func (t *SQLAttemptTracker) Counter(ctx context.Context, deviceID int64) (AttemptCounter, error) {
	return t.counter(ctx, "get attempt counter", deviceID)
}

func (t *SQLAttemptTracker) counter(ctx context.Context, op string, deviceID int64) (AttemptCounter, error) {
	c := AttemptCounter{DeviceID: deviceID}
	if deviceID < 0 {
		return c, deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}

	conn, err := acquire(ctx, t.db)
	if err != nil {
		return c, deviceError(op, acquireKind(err), deviceID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	var lastReset sql.NullString
	err = conn.QueryRowContext(ctx, t.db.Rebind(
		"SELECT attempts, last_reset FROM compliance_attempts WHERE device_id = ?"),
		deviceID,
	).Scan(&c.Attempts, &lastReset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, nil
		}
		return c, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("querying attempts: %w", err))
	}

	if lastReset.Valid && lastReset.String != "" {
		if c.LastReset, err = parseTimestamp(lastReset.String); err != nil {
			return c, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("parsing last_reset: %w", err))
		}
	}

	return c, nil
}
