package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
)

// ViolationStore persists the features that caused a non-compliance record.
type ViolationStore interface {
	// AddViolations stores the batch against recordID atomically.
	// An empty batch is a no-op.
	AddViolations(ctx context.Context, recordID, deviceID int64, violations []FeatureViolation) error

	// GetViolations returns the record's violations in insertion order.
	// A record with none yields an empty slice.
	GetViolations(ctx context.Context, recordID int64) ([]FeatureViolation, error)

	// ClearViolations deletes every violation of the record. Idempotent.
	ClearViolations(ctx context.Context, recordID int64) error
}

var errEmptyFeatureCode = errors.New("feature code is required")

func validateViolations(violations []FeatureViolation) error {
	for i := range violations {
		if violations[i].FeatureCode == "" {
			return fmt.Errorf("violation %d: %w", i, errEmptyFeatureCode)
		}
	}
	return nil
}

// SQLViolationStore implements ViolationStore on the compliance_features table.
type SQLViolationStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLViolationStore creates a violation store backed by db.
func NewSQLViolationStore(db *database.DB) *SQLViolationStore {
	return &SQLViolationStore{db: db, now: utcNow}
}

// AddViolations inserts all violations in one transaction. If any insert
// fails nothing from the batch is visible.
func (s *SQLViolationStore) AddViolations(ctx context.Context, recordID, deviceID int64, violations []FeatureViolation) error {
	const op = "add violations"
	if recordID < 0 || deviceID < 0 {
		return &Error{Op: op, DeviceID: deviceID, PolicyID: noID, RecordID: recordID, Kind: ErrInvalidArgument, cause: errNegativeID}
	}
	if len(violations) == 0 {
		return nil
	}
	if err := validateViolations(violations); err != nil {
		return &Error{Op: op, DeviceID: deviceID, PolicyID: noID, RecordID: recordID, Kind: ErrInvalidArgument, cause: err}
	}

	fail := func(kind, cause error) error {
		return &Error{Op: op, DeviceID: deviceID, PolicyID: noID, RecordID: recordID, Kind: kind, cause: cause}
	}

	conn, err := acquire(ctx, s.db)
	if err != nil {
		return fail(acquireKind(err), err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fail(ErrPersistence, fmt.Errorf("starting transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, s.db.Rebind(
		`INSERT INTO compliance_features (compliance_record_id, device_id, feature_code, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fail(ErrPersistence, fmt.Errorf("preparing insert: %w", err))
	}
	defer stmt.Close()

	now := formatTimestamp(s.now())
	for _, v := range violations {
		if _, err := stmt.ExecContext(ctx, recordID, deviceID, v.FeatureCode, statusText(v.Compliant), now); err != nil {
			return fail(ErrPersistence, fmt.Errorf("inserting feature %q: %w", v.FeatureCode, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(ErrPersistence, fmt.Errorf("committing violations: %w", err))
	}

	return nil
}

// GetViolations returns the record's violations ordered by id.
func (s *SQLViolationStore) GetViolations(ctx context.Context, recordID int64) ([]FeatureViolation, error) {
	const op = "get violations"
	if recordID < 0 {
		return nil, recordError(op, ErrInvalidArgument, recordID, errNegativeID)
	}

	conn, err := acquire(ctx, s.db)
	if err != nil {
		return nil, recordError(op, acquireKind(err), recordID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	rows, err := conn.QueryContext(ctx, s.db.Rebind(
		`SELECT id, compliance_record_id, device_id, feature_code, status, created_at
		 FROM compliance_features
		 WHERE compliance_record_id = ?
		 ORDER BY id`),
		recordID,
	)
	if err != nil {
		return nil, recordError(op, ErrPersistence, recordID, fmt.Errorf("querying violations: %w", err))
	}
	defer rows.Close()

	violations := []FeatureViolation{}
	for rows.Next() {
		var v FeatureViolation
		var createdAt string
		if err := rows.Scan(&v.ID, &v.ComplianceRecordID, &v.DeviceID, &v.FeatureCode, &v.Status, &createdAt); err != nil {
			return nil, recordError(op, ErrPersistence, recordID, fmt.Errorf("scanning violation: %w", err))
		}
		v.Compliant = parseStatusText(v.Status)
		if v.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, recordError(op, ErrPersistence, recordID, fmt.Errorf("parsing created_at: %w", err))
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, recordError(op, ErrPersistence, recordID, fmt.Errorf("iterating violations: %w", err))
	}

	return violations, nil
}

// ClearViolations deletes the record's violations. Clearing a record that
// has none succeeds.
func (s *SQLViolationStore) ClearViolations(ctx context.Context, recordID int64) error {
	const op = "clear violations"
	if recordID < 0 {
		return recordError(op, ErrInvalidArgument, recordID, errNegativeID)
	}

	conn, err := acquire(ctx, s.db)
	if err != nil {
		return recordError(op, acquireKind(err), recordID, err)
	}
	defer conn.Close() //nolint:errcheck // returns connection to pool

	if _, err := conn.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM compliance_features WHERE compliance_record_id = ?"),
		recordID,
	); err != nil {
		return recordError(op, ErrPersistence, recordID, fmt.Errorf("deleting violations: %w", err))
	}

	return nil
}
