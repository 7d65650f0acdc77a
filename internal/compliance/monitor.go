package compliance

import (
	"context"
	"errors"
	"time"
)

// Logger defines the logging interface used by the Monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Monitor orchestrates the ledger, violation store and attempt tracker for
// each evaluation outcome.
//
// Reads pass straight through to the stores. Writes are sequenced:
//
//	ReportViolations: RecordNonCompliance -> AddViolations -> Increment
//	ReportCompliant:  MarkCompliant -> RecordAttempt(true)
//
// Arguments are validated before the first write. After that there is no
// rollback across steps, and the attempt is always counted even when the
// verdict could not be stored.
//
// All methods are safe for concurrent use once configuration setters have
// been called.
type Monitor struct {
	ledger     Ledger
	violations ViolationStore
	attempts   AttemptTracker

	handlers      []EventHandler
	escalateAfter int
	logger        Logger
	now           func() time.Time
}

// NewMonitor creates a Monitor over the given stores.
func NewMonitor(ledger Ledger, violations ViolationStore, attempts AttemptTracker) *Monitor {
	return &Monitor{
		ledger:     ledger,
		violations: violations,
		attempts:   attempts,
		logger:     noopLogger{},
		now:        utcNow,
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// AddHandler registers an event handler. Handlers run synchronously in
// registration order after each operation.
func (m *Monitor) AddHandler(h EventHandler) {
	m.handlers = append(m.handlers, h)
}

// SetEscalationThreshold emits EventEscalated when a failed attempt brings a
// device's counter to exactly n. Zero disables escalation.
func (m *Monitor) SetEscalationThreshold(n int) {
	if n < 0 {
		n = 0
	}
	m.escalateAfter = n
}

// ReportViolations records a non-compliance verdict with its violations and
// counts a failed attempt. It returns the new record id (0 if the record could
// not be stored) and the joined errors of every failed step.
func (m *Monitor) ReportViolations(ctx context.Context, deviceID, policyID int64, violations []FeatureViolation) (int64, error) {
	return m.reportViolations(ctx, deviceID, policyID, violations, "")
}

// ReportCompliant marks the device compliant and resets its attempt counter.
// Violations stored against earlier records are kept.
func (m *Monitor) ReportCompliant(ctx context.Context, deviceID, policyID int64) error {
	return m.reportCompliant(ctx, deviceID, policyID, "")
}

// Evaluate applies one evaluation outcome. The returned id is the new record
// for a non-compliant outcome and 0 otherwise.
func (m *Monitor) Evaluate(ctx context.Context, o Outcome) (int64, error) {
	if o.Compliant {
		return 0, m.reportCompliant(ctx, o.DeviceID, o.PolicyID, o.RunID)
	}
	return m.reportViolations(ctx, o.DeviceID, o.PolicyID, o.Violations, o.RunID)
}

func (m *Monitor) reportViolations(ctx context.Context, deviceID, policyID int64, violations []FeatureViolation, runID string) (int64, error) {
	const op = "report violations"
	if deviceID < 0 || policyID < 0 {
		return 0, pairError(op, ErrInvalidArgument, deviceID, policyID, errNegativeID)
	}
	if err := validateViolations(violations); err != nil {
		return 0, pairError(op, ErrInvalidArgument, deviceID, policyID, err)
	}

	var errs []error

	recordID, err := m.ledger.RecordNonCompliance(ctx, deviceID, policyID)
	recorded := err == nil
	if err != nil {
		errs = append(errs, err)
	} else if err := m.violations.AddViolations(ctx, recordID, deviceID, violations); err != nil {
		errs = append(errs, err)
	}

	attempts, attemptErr := m.attempts.Increment(ctx, deviceID)
	if attemptErr != nil {
		errs = append(errs, attemptErr)
	}

	joined := errors.Join(errs...)
	if joined != nil {
		m.logger.Warn("non-compliance report incomplete",
			"device_id", deviceID, "policy_id", policyID, "record_id", recordID, "error", joined)
	} else {
		m.logger.Info("recorded non-compliance",
			"device_id", deviceID, "policy_id", policyID, "record_id", recordID, "violations", len(violations))
	}

	ev := Event{
		Type:       EventNonCompliant,
		DeviceID:   deviceID,
		PolicyID:   policyID,
		RecordID:   recordID,
		Violations: violations,
		Attempts:   -1,
		RunID:      runID,
		Err:        joined,
	}
	if !recorded {
		ev.Type = EventReportFailed
		ev.RecordID = noID
	}
	if attemptErr == nil {
		ev.Attempts = attempts
	}
	m.emit(ctx, ev)

	if attemptErr == nil && m.escalateAfter > 0 && attempts == m.escalateAfter {
		m.logger.Warn("attempt threshold reached",
			"device_id", deviceID, "policy_id", policyID, "attempts", ev.Attempts)
		m.emit(ctx, Event{
			Type:     EventEscalated,
			DeviceID: deviceID,
			PolicyID: policyID,
			RecordID: recordID,
			Attempts: ev.Attempts,
			RunID:    runID,
		})
	}

	return recordID, joined
}

func (m *Monitor) reportCompliant(ctx context.Context, deviceID, policyID int64, runID string) error {
	if deviceID < 0 {
		return pairError("report compliant", ErrInvalidArgument, deviceID, policyID, errNegativeID)
	}

	var errs []error

	markErr := m.ledger.MarkCompliant(ctx, deviceID)
	if markErr != nil {
		errs = append(errs, markErr)
	}
	attemptErr := m.attempts.RecordAttempt(ctx, deviceID, true)
	if attemptErr != nil {
		errs = append(errs, attemptErr)
	}

	joined := errors.Join(errs...)
	if joined != nil {
		m.logger.Warn("compliance report incomplete",
			"device_id", deviceID, "policy_id", policyID, "error", joined)
	} else {
		m.logger.Info("marked compliant", "device_id", deviceID, "policy_id", policyID)
	}

	ev := Event{
		Type:     EventCompliant,
		DeviceID: deviceID,
		PolicyID: policyID,
		RecordID: noID,
		Attempts: -1,
		RunID:    runID,
		Err:      joined,
	}
	if markErr != nil {
		ev.Type = EventReportFailed
	}
	if attemptErr == nil {
		ev.Attempts = 0
	}
	m.emit(ctx, ev)

	return joined
}

func (m *Monitor) emit(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}
	for _, h := range m.handlers {
		if err := h.HandleComplianceEvent(ctx, ev); err != nil {
			m.logger.Warn("compliance event handler failed",
				"event", string(ev.Type), "device_id", ev.DeviceID, "error", err)
		}
	}
}

// GetCompliance returns the device's most recent record.
func (m *Monitor) GetCompliance(ctx context.Context, deviceID int64) (*Record, error) {
	return m.ledger.GetCompliance(ctx, deviceID)
}

// GetCurrent returns the most recent record for a (device, policy) pair.
func (m *Monitor) GetCurrent(ctx context.Context, deviceID, policyID int64) (*Record, error) {
	return m.ledger.GetCurrent(ctx, deviceID, policyID)
}

// History returns the device's records newest first.
func (m *Monitor) History(ctx context.Context, deviceID int64, limit int) ([]Record, error) {
	return m.ledger.History(ctx, deviceID, limit)
}

// Summary counts current records by status.
func (m *Monitor) Summary(ctx context.Context) (Summary, error) {
	return m.ledger.Summary(ctx)
}

// GetViolations returns a record's violations in insertion order.
func (m *Monitor) GetViolations(ctx context.Context, recordID int64) ([]FeatureViolation, error) {
	return m.violations.GetViolations(ctx, recordID)
}

// ClearViolations deletes a record's violations.
func (m *Monitor) ClearViolations(ctx context.Context, recordID int64) error {
	if err := m.violations.ClearViolations(ctx, recordID); err != nil {
		return err
	}
	m.logger.Info("cleared violations", "record_id", recordID)
	m.emit(ctx, Event{Type: EventViolationsCleared, DeviceID: noID, PolicyID: noID, RecordID: recordID, Attempts: -1})
	return nil
}

// GetAttempts returns the device's failed attempt count.
func (m *Monitor) GetAttempts(ctx context.Context, deviceID int64) (int, error) {
	return m.attempts.GetAttempts(ctx, deviceID)
}

// AttemptCounter returns the device's full attempt counter.
func (m *Monitor) AttemptCounter(ctx context.Context, deviceID int64) (AttemptCounter, error) {
	return m.attempts.Counter(ctx, deviceID)
}

// ResetAttempts zeroes the device's attempt counter.
func (m *Monitor) ResetAttempts(ctx context.Context, deviceID int64) error {
	if err := m.attempts.Reset(ctx, deviceID); err != nil {
		return err
	}
	m.logger.Info("reset attempts", "device_id", deviceID)
	m.emit(ctx, Event{Type: EventAttemptsReset, DeviceID: deviceID, PolicyID: noID, RecordID: noID})
	return nil
}
