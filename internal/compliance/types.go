package compliance

import (
	"strconv"
	"time"
)

// Status is the verdict of a compliance record. Persisted as 0/1.
type Status int

const (
	// StatusNonCompliant is the initial state of every record.
	StatusNonCompliant Status = 0

	// StatusCompliant is set when the device is remediated. Terminal.
	StatusCompliant Status = 1
)

// String returns the status name used in logs, events and JSON.
func (s Status) String() string {
	if s == StatusCompliant {
		return "compliant"
	}
	return "non_compliant"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is one compliance verdict for a device under a policy.
type Record struct {
	ID        int64     `json:"id"`
	DeviceID  int64     `json:"device_id"`
	PolicyID  int64     `json:"policy_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Compliant reports whether the record is in the compliant state.
func (r *Record) Compliant() bool {
	return r.Status == StatusCompliant
}

// FeatureViolation is the per-feature result attached to a non-compliance record.
//
// Compliant is the value supplied by the evaluator. Status is the persisted
// text form ("true"/"false") and is returned verbatim on read.
type FeatureViolation struct {
	ID                 int64     `json:"id"`
	ComplianceRecordID int64     `json:"compliance_record_id"`
	DeviceID           int64     `json:"device_id"`
	FeatureCode        string    `json:"feature_code"`
	Compliant          bool      `json:"compliant"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// statusText returns the persisted form of a feature result.
func statusText(compliant bool) string {
	return strconv.FormatBool(compliant)
}

// parseStatusText reverses statusText. Unrecognised text reads as non-compliant.
func parseStatusText(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// AttemptCounter is a device's count of consecutive failed monitoring attempts.
type AttemptCounter struct {
	DeviceID  int64     `json:"device_id"`
	Attempts  int       `json:"attempts"`
	LastReset time.Time `json:"last_reset,omitempty"`
}

// Summary counts current records (highest id per device and policy) by status.
type Summary struct {
	Compliant    int `json:"compliant"`
	NonCompliant int `json:"non_compliant"`
}

// Total returns the number of (device, policy) pairs with a current record.
func (s Summary) Total() int {
	return s.Compliant + s.NonCompliant
}

// Outcome is one policy evaluation result delivered by the evaluator.
type Outcome struct {
	DeviceID   int64              `json:"device_id"`
	PolicyID   int64              `json:"policy_id"`
	Compliant  bool               `json:"compliant"`
	Violations []FeatureViolation `json:"violations,omitempty"`
	RunID      string             `json:"run_id,omitempty"`
}

// History limits.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// clampHistoryLimit applies the default and maximum page size.
func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(timestampLayout, value)
}
