package compliance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *eventRecorder) HandleComplianceEvent(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestMonitor(t *testing.T) (*Monitor, *eventRecorder) {
	t.Helper()
	ledger, violations, attempts := stores(openTestDB(t))
	m := NewMonitor(ledger, violations, attempts)
	rec := &eventRecorder{}
	m.AddHandler(rec)
	return m, rec
}

func TestMonitor_CameraDisabledScenario(t *testing.T) {
	m, events := newTestMonitor(t)
	ctx := context.Background()

	recordID, err := m.ReportViolations(ctx, 42, 7, []FeatureViolation{
		{FeatureCode: "camera-disabled", Compliant: false},
	})
	require.NoError(t, err)

	rec, err := m.GetCompliance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, recordID, rec.ID)
	assert.Equal(t, StatusNonCompliant, rec.Status)

	violations, err := m.GetViolations(ctx, recordID)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "camera-disabled", violations[0].FeatureCode)
	assert.Equal(t, "false", violations[0].Status)

	n, err := m.GetAttempts(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, m.ReportCompliant(ctx, 42, 7))

	rec, err = m.GetCompliance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, recordID, rec.ID)
	assert.Equal(t, StatusCompliant, rec.Status)

	n, err = m.GetAttempts(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Violations of the superseded verdict are retained.
	violations, err = m.GetViolations(ctx, recordID)
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	assert.Equal(t, []EventType{EventNonCompliant, EventCompliant}, events.types())
	assert.Equal(t, 1, events.events[0].Attempts)
	assert.Equal(t, recordID, events.events[0].RecordID)
}

func TestMonitor_Evaluate_Dispatches(t *testing.T) {
	m, events := newTestMonitor(t)
	ctx := context.Background()

	id, err := m.Evaluate(ctx, Outcome{
		DeviceID:   3,
		PolicyID:   1,
		RunID:      "run-1",
		Violations: []FeatureViolation{{FeatureCode: "usb-debugging"}},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	id, err = m.Evaluate(ctx, Outcome{DeviceID: 3, PolicyID: 1, Compliant: true, RunID: "run-2"})
	require.NoError(t, err)
	assert.Zero(t, id)

	require.Len(t, events.events, 2)
	assert.Equal(t, "run-1", events.events[0].RunID)
	assert.Equal(t, "run-2", events.events[1].RunID)
	assert.Equal(t, EventCompliant, events.events[1].Type)
}

func TestMonitor_Escalation(t *testing.T) {
	m, events := newTestMonitor(t)
	m.SetEscalationThreshold(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.ReportViolations(ctx, 42, 7, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []EventType{
		EventNonCompliant,
		EventNonCompliant, EventEscalated,
		EventNonCompliant,
	}, events.types())
}

func TestMonitor_ConcurrentFailuresEscalateOnce(t *testing.T) {
	m, events := newTestMonitor(t)
	m.SetEscalationThreshold(3)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.ReportViolations(ctx, 42, 7, []FeatureViolation{{FeatureCode: "screen-lock"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var escalated []Event
	attempts := make(map[int]bool)
	events.mu.Lock()
	for _, ev := range events.events {
		switch ev.Type {
		case EventEscalated:
			escalated = append(escalated, ev)
		case EventNonCompliant:
			attempts[ev.Attempts] = true
		}
	}
	events.mu.Unlock()

	require.Len(t, escalated, 1)
	assert.Equal(t, 3, escalated[0].Attempts)
	assert.Len(t, attempts, 6, "each failure reports its own count")

	n, err := m.GetAttempts(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestMonitor_RejectsInvalidReportBeforeWriting(t *testing.T) {
	m, events := newTestMonitor(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		deviceID   int64
		policyID   int64
		violations []FeatureViolation
	}{
		{"negative device", -1, 7, nil},
		{"negative policy", 42, -7, nil},
		{"empty feature code", 42, 7, []FeatureViolation{{FeatureCode: "camera-disabled"}, {FeatureCode: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := m.ReportViolations(ctx, tt.deviceID, tt.policyID, tt.violations)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Zero(t, id)
		})
	}
	assert.ErrorIs(t, m.ReportCompliant(ctx, -1, 7), ErrInvalidArgument)

	_, err := m.GetCompliance(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := m.GetAttempts(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, events.types())
}

func TestMonitor_HandlerErrorsDoNotFailOperation(t *testing.T) {
	m, events := newTestMonitor(t)
	events.err = errors.New("broker offline")

	_, err := m.ReportViolations(context.Background(), 42, 7, nil)

	assert.NoError(t, err)
	assert.Len(t, events.events, 1)
}

func TestMonitor_ClearViolationsAndResetAttempts(t *testing.T) {
	m, events := newTestMonitor(t)
	ctx := context.Background()

	recordID, err := m.ReportViolations(ctx, 42, 7, []FeatureViolation{{FeatureCode: "camera-disabled"}})
	require.NoError(t, err)

	require.NoError(t, m.ClearViolations(ctx, recordID))
	require.NoError(t, m.ResetAttempts(ctx, 42))

	got, err := m.GetViolations(ctx, recordID)
	require.NoError(t, err)
	assert.Empty(t, got)

	c, err := m.AttemptCounter(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Attempts)

	assert.Equal(t, []EventType{EventNonCompliant, EventViolationsCleared, EventAttemptsReset}, events.types())
}

// Fakes for step-failure sequencing.

type fakeLedger struct {
	Ledger
	recordErr error
	markErr   error
	nextID    int64
}

func (f *fakeLedger) RecordNonCompliance(context.Context, int64, int64) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeLedger) MarkCompliant(context.Context, int64) error { return f.markErr }

type fakeViolations struct {
	ViolationStore
	addErr error
	calls  int
}

func (f *fakeViolations) AddViolations(context.Context, int64, int64, []FeatureViolation) error {
	f.calls++
	return f.addErr
}

type fakeAttempts struct {
	AttemptTracker
	recordErr error
	failures  int
	successes int
}

func (f *fakeAttempts) RecordAttempt(_ context.Context, _ int64, succeeded bool) error {
	if succeeded {
		f.successes++
	} else {
		f.failures++
	}
	return f.recordErr
}

func (f *fakeAttempts) Increment(ctx context.Context, deviceID int64) (int, error) {
	if err := f.RecordAttempt(ctx, deviceID, false); err != nil {
		return 0, err
	}
	return f.failures, nil
}

func TestMonitor_ReportViolations_StepFailures(t *testing.T) {
	tests := []struct {
		name           string
		ledgerErr      error
		addErr         error
		attemptErr     error
		wantKinds      []error
		wantAddCalls   int
		wantEventType  EventType
		wantRecordedID bool
	}{
		{
			name:           "ledger failure still counts attempt",
			ledgerErr:      pairError("record non-compliance", ErrPersistence, 42, 7, nil),
			wantKinds:      []error{ErrPersistence},
			wantAddCalls:   0,
			wantEventType:  EventReportFailed,
			wantRecordedID: false,
		},
		{
			name:           "violation failure keeps record",
			addErr:         recordError("add violations", ErrPersistence, 1, nil),
			wantKinds:      []error{ErrPersistence},
			wantAddCalls:   1,
			wantEventType:  EventNonCompliant,
			wantRecordedID: true,
		},
		{
			name:           "ledger unavailable and attempt failure are joined",
			ledgerErr:      pairError("record non-compliance", ErrConfiguration, 42, 7, nil),
			attemptErr:     deviceError("record attempt", ErrPersistence, 42, nil),
			wantKinds:      []error{ErrConfiguration, ErrPersistence},
			wantEventType:  EventReportFailed,
			wantRecordedID: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{recordErr: tt.ledgerErr}
			violations := &fakeViolations{addErr: tt.addErr}
			attempts := &fakeAttempts{recordErr: tt.attemptErr}
			events := &eventRecorder{}

			m := NewMonitor(ledger, violations, attempts)
			m.AddHandler(events)

			id, err := m.ReportViolations(context.Background(), 42, 7, []FeatureViolation{{FeatureCode: "camera-disabled"}})

			require.Error(t, err)
			for _, kind := range tt.wantKinds {
				assert.ErrorIs(t, err, kind)
			}
			assert.Equal(t, 1, attempts.failures, "attempt must always be counted")
			assert.Equal(t, tt.wantAddCalls, violations.calls)
			assert.Equal(t, tt.wantRecordedID, id != 0)

			require.Len(t, events.events, 1)
			assert.Equal(t, tt.wantEventType, events.events[0].Type)
			assert.Error(t, events.events[0].Err)
		})
	}
}

func TestMonitor_ReportCompliant_StepFailures(t *testing.T) {
	ledger := &fakeLedger{markErr: deviceError("mark compliant", ErrPersistence, 42, nil)}
	attempts := &fakeAttempts{}
	m := NewMonitor(ledger, &fakeViolations{}, attempts)

	err := m.ReportCompliant(context.Background(), 42, 7)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 1, attempts.successes)
}
