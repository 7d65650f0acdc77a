package metrics

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/influxdb"
)

// PointWriter is satisfied by *influxdb.Client.
type PointWriter interface {
	WriteComplianceEvent(ev influxdb.ComplianceEvent)
	WriteSummary(compliant, nonCompliant int, ts time.Time)
}

// InfluxSink writes Monitor events as InfluxDB points.
type InfluxSink struct {
	writer PointWriter
}

// NewInfluxSink creates a sink over writer.
func NewInfluxSink(writer PointWriter) *InfluxSink {
	return &InfluxSink{writer: writer}
}

// HandleComplianceEvent implements compliance.EventHandler. Writes are
// batched by the client, so errors surface through its error callback.
func (s *InfluxSink) HandleComplianceEvent(_ context.Context, ev compliance.Event) error {
	s.writer.WriteComplianceEvent(influxdb.ComplianceEvent{
		Type:       string(ev.Type),
		DeviceID:   ev.DeviceID,
		PolicyID:   ev.PolicyID,
		RecordID:   ev.RecordID,
		Violations: len(ev.Violations),
		Attempts:   ev.Attempts,
		Failed:     ev.Err != nil,
		Timestamp:  ev.Timestamp,
	})
	return nil
}

// ObserveSummary writes a fleet summary point.
func (s *InfluxSink) ObserveSummary(sum compliance.Summary, at time.Time) {
	s.writer.WriteSummary(sum.Compliant, sum.NonCompliant, at)
}
