package audit

import (
	"context"
	"strconv"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

// SourceMonitor is the default audit source for monitor events.
const SourceMonitor = "monitor"

// Recorder writes one audit entry per compliance event.
type Recorder struct {
	repo   Repository
	source string
}

// NewRecorder creates a Recorder. An empty source selects SourceMonitor.
func NewRecorder(repo Repository, source string) *Recorder {
	if source == "" {
		source = SourceMonitor
	}
	return &Recorder{repo: repo, source: source}
}

// HandleComplianceEvent implements compliance.EventHandler.
func (r *Recorder) HandleComplianceEvent(ctx context.Context, ev compliance.Event) error {
	return r.repo.Create(ctx, r.entry(ev))
}

func (r *Recorder) entry(ev compliance.Event) *AuditLog {
	log := &AuditLog{
		Action:     string(ev.Type),
		EntityType: EntityDevice,
		EntityID:   idString(ev.DeviceID),
		Source:     r.source,
		CreatedAt:  ev.Timestamp,
	}

	details := map[string]any{}
	if ev.PolicyID >= 0 {
		details["policy_id"] = ev.PolicyID
	}
	if ev.RecordID > 0 {
		details["record_id"] = ev.RecordID
	}
	if ev.Attempts >= 0 {
		details["attempts"] = ev.Attempts
	}
	if ev.RunID != "" {
		details["run_id"] = ev.RunID
	}
	if ev.Err != nil {
		details["error"] = ev.Err.Error()
	}
	if len(ev.Violations) > 0 {
		codes := make([]string, 0, len(ev.Violations))
		for _, v := range ev.Violations {
			codes = append(codes, v.FeatureCode)
		}
		details["features"] = codes
	}

	if ev.Type == compliance.EventViolationsCleared {
		log.EntityType = EntityRecord
		log.EntityID = idString(ev.RecordID)
		delete(details, "record_id")
	}

	if len(details) > 0 {
		log.Details = details
	}
	return log
}

func idString(id int64) string {
	if id < 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
