package compliance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
)

// Ledger persists compliance verdicts.
//
// Implementations must be safe for concurrent use.
type Ledger interface {
	// RecordNonCompliance appends a NON_COMPLIANT record and returns its id.
	RecordNonCompliance(ctx context.Context, deviceID, policyID int64) (int64, error)

	// MarkCompliant moves every NON_COMPLIANT record of the device to
	// COMPLIANT, regardless of policy. A device with no records is a no-op.
	MarkCompliant(ctx context.Context, deviceID int64) error

	// GetCompliance returns the device's most recent record (highest id).
	GetCompliance(ctx context.Context, deviceID int64) (*Record, error)

	// GetCurrent returns the most recent record for a (device, policy) pair.
	GetCurrent(ctx context.Context, deviceID, policyID int64) (*Record, error)

	// History returns the device's records newest first (default 50, max 200).
	History(ctx context.Context, deviceID int64, limit int) ([]Record, error)

	// Summary counts current records by status.
	Summary(ctx context.Context) (Summary, error)
}

const recordColumns = "id, device_id, policy_id, status, created_at, updated_at"

// SQLLedger implements Ledger on the compliance_records table.
type SQLLedger struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLLedger creates a ledger backed by db.
func NewSQLLedger(db *database.DB) *SQLLedger {
	return &SQLLedger{db: db, now: utcNow}
}

// RecordNonCompliance inserts a new NON_COMPLIANT record. Earlier records for
// the same pair are left untouched and are superseded by the new id.
func (l *SQLLedger) RecordNonCompliance(ctx context.Context, deviceID, policyID int64) (int64, error) {
	const op = "record non-compliance"
	if deviceID < 0 || policyID < 0 {
		return 0, pairError(op, ErrInvalidArgument, deviceID, policyID, errNegativeID)
	}

	conn, err := acquire(ctx, l.db)
	if err != nil {
		return 0, pairError(op, acquireKind(err), deviceID, policyID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	now := formatTimestamp(l.now())
	var id int64
	err = conn.QueryRowContext(ctx, l.db.Rebind(
		`INSERT INTO compliance_records (device_id, policy_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		deviceID, policyID, int64(StatusNonCompliant), now, now,
	).Scan(&id)
	if err != nil {
		return 0, pairError(op, ErrPersistence, deviceID, policyID, fmt.Errorf("inserting record: %w", err))
	}

	return id, nil
}

// MarkCompliant sets status = COMPLIANT on the device's NON_COMPLIANT records.
// Records already COMPLIANT are not rewritten.
func (l *SQLLedger) MarkCompliant(ctx context.Context, deviceID int64) error {
	const op = "mark compliant"
	if deviceID < 0 {
		return deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}

	conn, err := acquire(ctx, l.db)
	if err != nil {
		return deviceError(op, acquireKind(err), deviceID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	_, err = conn.ExecContext(ctx, l.db.Rebind(
		`UPDATE compliance_records
		 SET status = ?, updated_at = ?
		 WHERE device_id = ? AND status = ?`),
		int64(StatusCompliant), formatTimestamp(l.now()), deviceID, int64(StatusNonCompliant),
	)
	if err != nil {
		return deviceError(op, ErrPersistence, deviceID, fmt.Errorf("updating records: %w", err))
	}

	return nil
}

// GetCompliance returns the device's record with the highest id.
func (l *SQLLedger) GetCompliance(ctx context.Context, deviceID int64) (*Record, error) {
	const op = "get compliance"
	if deviceID < 0 {
		return nil, deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}

	conn, err := acquire(ctx, l.db)
	if err != nil {
		return nil, deviceError(op, acquireKind(err), deviceID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	row := conn.QueryRowContext(ctx, l.db.Rebind(
		`SELECT `+recordColumns+`
		 FROM compliance_records
		 WHERE device_id = ?
		 ORDER BY id DESC
		 LIMIT 1`),
		deviceID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, deviceError(op, ErrNotFound, deviceID, nil)
		}
		return nil, deviceError(op, ErrPersistence, deviceID, err)
	}

	return rec, nil
}

// GetCurrent returns the pair's record with the highest id.
func (l *SQLLedger) GetCurrent(ctx context.Context, deviceID, policyID int64) (*Record, error) {
	const op = "get current compliance"
	if deviceID < 0 || policyID < 0 {
		return nil, pairError(op, ErrInvalidArgument, deviceID, policyID, errNegativeID)
	}

	conn, err := acquire(ctx, l.db)
	if err != nil {
		return nil, pairError(op, acquireKind(err), deviceID, policyID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	row := conn.QueryRowContext(ctx, l.db.Rebind(
		`SELECT `+recordColumns+`
		 FROM compliance_records
		 WHERE device_id = ? AND policy_id = ?
		 ORDER BY id DESC
		 LIMIT 1`),
		deviceID, policyID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pairError(op, ErrNotFound, deviceID, policyID, nil)
		}
		return nil, pairError(op, ErrPersistence, deviceID, policyID, err)
	}

	return rec, nil
}

// History returns the device's records ordered newest first.
func (l *SQLLedger) History(ctx context.Context, deviceID int64, limit int) ([]Record, error) {
	const op = "get history"
	if deviceID < 0 {
		return nil, deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}
	limit = clampHistoryLimit(limit)

	conn, err := acquire(ctx, l.db)
	if err != nil {
		return nil, deviceError(op, acquireKind(err), deviceID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	rows, err := conn.QueryContext(ctx, l.db.Rebind(
		`SELECT `+recordColumns+`
		 FROM compliance_records
		 WHERE device_id = ?
		 ORDER BY id DESC
		 LIMIT ?`),
		deviceID, limit,
	)
	if err != nil {
		return nil, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("querying history: %w", err))
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, deviceError(op, ErrPersistence, deviceID, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("iterating history: %w", err))
	}

	return records, nil
}

// Summary counts the current record of every (device, policy) pair by status.
func (l *SQLLedger) Summary(ctx context.Context) (Summary, error) {
	const op = "summarise compliance"

	conn, err := acquire(ctx, l.db)
	if err != nil {
		return Summary{}, storeError(op, acquireKind(err), err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	rows, err := conn.QueryContext(ctx,
		`SELECT r.status, COUNT(*)
		 FROM compliance_records r
		 JOIN (
			SELECT MAX(id) AS id FROM compliance_records GROUP BY device_id, policy_id
		 ) cur ON cur.id = r.id
		 GROUP BY r.status`,
	)
	if err != nil {
		return Summary{}, storeError(op, ErrPersistence, fmt.Errorf("querying summary: %w", err))
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var status int64
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, storeError(op, ErrPersistence, fmt.Errorf("scanning summary: %w", err))
		}
		if Status(status) == StatusCompliant {
			sum.Compliant += count
		} else {
			sum.NonCompliant += count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, storeError(op, ErrPersistence, fmt.Errorf("iterating summary: %w", err))
	}

	return sum, nil
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var status int64
	var createdAt, updatedAt string

	if err := row.Scan(&rec.ID, &rec.DeviceID, &rec.PolicyID, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	rec.Status = Status(status)

	var err error
	if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &rec, nil
}
