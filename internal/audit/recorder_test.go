package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

type memoryRepo struct {
	logs []*AuditLog
	err  error
}

func (m *memoryRepo) Create(_ context.Context, log *AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryRepo) List(context.Context, Filter) (*ListResult, error) {
	return nil, errors.New("not implemented")
}

func TestRecorder_Entries(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		event       compliance.Event
		wantAction  string
		wantEntity  string
		wantID      string
		wantDetails map[string]any
	}{
		{
			name: "non-compliant",
			event: compliance.Event{
				Type: compliance.EventNonCompliant, DeviceID: 42, PolicyID: 7, RecordID: 5, Attempts: 1,
				Violations: []compliance.FeatureViolation{{FeatureCode: "CAMERA"}, {FeatureCode: "WIFI"}},
				RunID:      "run-1", Timestamp: ts,
			},
			wantAction: "non_compliant",
			wantEntity: EntityDevice,
			wantID:     "42",
			wantDetails: map[string]any{
				"policy_id": int64(7), "record_id": int64(5), "attempts": 1,
				"run_id": "run-1", "features": []string{"CAMERA", "WIFI"},
			},
		},
		{
			name: "report failed",
			event: compliance.Event{
				Type: compliance.EventReportFailed, DeviceID: 42, PolicyID: 7, RecordID: compliance.UnknownID,
				Attempts: -1, Err: errors.New("disk full"), Timestamp: ts,
			},
			wantAction:  "report_failed",
			wantEntity:  EntityDevice,
			wantID:      "42",
			wantDetails: map[string]any{"policy_id": int64(7), "error": "disk full"},
		},
		{
			name: "violations cleared",
			event: compliance.Event{
				Type: compliance.EventViolationsCleared, DeviceID: compliance.UnknownID,
				PolicyID: compliance.UnknownID, RecordID: 5, Attempts: -1, Timestamp: ts,
			},
			wantAction: "violations_cleared",
			wantEntity: EntityRecord,
			wantID:     "5",
		},
		{
			name: "attempts reset",
			event: compliance.Event{
				Type: compliance.EventAttemptsReset, DeviceID: 42, PolicyID: compliance.UnknownID,
				RecordID: compliance.UnknownID, Timestamp: ts,
			},
			wantAction:  "attempts_reset",
			wantEntity:  EntityDevice,
			wantID:      "42",
			wantDetails: map[string]any{"attempts": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memoryRepo{}
			rec := NewRecorder(repo, "")

			require.NoError(t, rec.HandleComplianceEvent(context.Background(), tt.event))
			require.Len(t, repo.logs, 1)

			log := repo.logs[0]
			assert.Equal(t, tt.wantAction, log.Action)
			assert.Equal(t, tt.wantEntity, log.EntityType)
			assert.Equal(t, tt.wantID, log.EntityID)
			assert.Equal(t, SourceMonitor, log.Source)
			assert.Equal(t, ts, log.CreatedAt)
			if tt.wantDetails == nil {
				assert.Nil(t, log.Details)
			} else {
				assert.Equal(t, tt.wantDetails, log.Details)
			}
		})
	}
}

func TestRecorder_PropagatesRepositoryError(t *testing.T) {
	repo := &memoryRepo{err: errors.New("db locked")}
	rec := NewRecorder(repo, "cli")

	err := rec.HandleComplianceEvent(context.Background(), compliance.Event{Type: compliance.EventCompliant, DeviceID: 1})
	assert.EqualError(t, err, "db locked")
}

func TestRecorder_MonitorIntegration(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLRepository(db)

	monitor := compliance.NewMonitor(
		compliance.NewSQLLedger(db),
		compliance.NewSQLViolationStore(db),
		compliance.NewSQLAttemptTracker(db),
	)
	monitor.AddHandler(NewRecorder(repo, ""))

	ctx := context.Background()
	_, err := monitor.ReportViolations(ctx, 42, 7, []compliance.FeatureViolation{{FeatureCode: "CAMERA"}})
	require.NoError(t, err)
	require.NoError(t, monitor.ReportCompliant(ctx, 42, 7))

	res, err := repo.List(ctx, Filter{EntityType: EntityDevice, EntityID: "42"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}
