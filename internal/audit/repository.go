package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
)

// Entity types recorded in the audit trail.
const (
	EntityDevice = "device"
	EntityRecord = "compliance_record"
)

// List page sizes.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AuditLog is a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string // optional: non_compliant, compliant, escalated, ...
	EntityType string // optional: device or compliance_record
	EntityID   string // optional: a specific device or record id
	Limit      int    // default 50, max 200
	Offset     int
}

// ListResult contains a page of audit logs.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLRepository stores audit logs in SQLite or PostgreSQL.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates an audit log repository.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create inserts an entry, generating ID and CreatedAt when empty.
func (r *SQLRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if log.Details != nil {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Action, log.EntityType,
		nullableString(log.EntityID), nullableString(log.UserID),
		log.Source, detailsJSON,
		log.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}

	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalized clamps the page window to the supported range.
func (f Filter) normalized() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	f.Offset = max(f.Offset, 0)
	return f
}

// where renders the filter as a WHERE clause with ? placeholders.
func (f Filter) where() (string, []any) {
	columns := []struct {
		name, value string
	}{
		{"action", f.Action},
		{"entity_type", f.EntityType},
		{"entity_id", f.EntityID},
	}

	var (
		conds []string
		args  []any
	)
	for _, c := range columns {
		if c.value != "" {
			conds = append(conds, c.name+" = ?")
			args = append(args, c.value)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns matching entries, most recent first.
func (r *SQLRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = filter.normalized()
	where, args := filter.where()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	query := "SELECT id, action, entity_type, entity_id, user_id, source, details, created_at FROM audit_logs" +
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func scanLog(rows *sql.Rows) (AuditLog, error) {
	var log AuditLog
	var entityID, userID, detailsJSON sql.NullString
	var createdAt string

	if err := rows.Scan(&log.ID, &log.Action, &log.EntityType,
		&entityID, &userID, &log.Source, &detailsJSON, &createdAt); err != nil {
		return log, fmt.Errorf("scanning audit log: %w", err)
	}

	log.EntityID = entityID.String
	log.UserID = userID.String
	if detailsJSON.Valid && detailsJSON.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
			log.Details = details
		}
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return log, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	log.CreatedAt = t

	return log, nil
}
