package compliance

import (
	"context"
	"time"
)

// EventType names a compliance transition or action.
type EventType string

// Event types emitted by the Monitor.
const (
	EventNonCompliant      EventType = "non_compliant"
	EventCompliant         EventType = "compliant"
	EventViolationsCleared EventType = "violations_cleared"
	EventAttemptsReset     EventType = "attempts_reset"
	EventEscalated         EventType = "escalated"
	EventReportFailed      EventType = "report_failed"
)

// UnknownID fills id fields that do not apply to an event or error.
const UnknownID int64 = -1

// Event describes something the Monitor did. Err carries the joined step
// errors of a partially failed report; it is nil for clean transitions.
// Attempts is the device's counter after the operation, or -1 when it is
// unknown or does not apply.
type Event struct {
	Type       EventType
	DeviceID   int64
	PolicyID   int64
	RecordID   int64
	Violations []FeatureViolation
	Attempts   int
	RunID      string
	Err        error
	Timestamp  time.Time
}

// EventHandler receives Monitor events after the stores have been written.
// Handler errors are logged by the Monitor and never change the result of
// the operation that produced the event.
type EventHandler interface {
	HandleComplianceEvent(ctx context.Context, ev Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, ev Event) error

// HandleComplianceEvent calls f.
func (f EventHandlerFunc) HandleComplianceEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
