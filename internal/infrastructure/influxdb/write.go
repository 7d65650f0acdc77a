package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the compliance service.
const (
	MeasurementEvent   = "compliance_event"
	MeasurementSummary = "compliance_summary"
)

// ComplianceEvent is one monitor transition as a time-series point.
type ComplianceEvent struct {
	Type       string
	DeviceID   int64
	PolicyID   int64
	RecordID   int64
	Violations int
	Attempts   int
	Failed     bool
	Timestamp  time.Time
}

// WriteComplianceEvent records a transition, tagged by device, policy and
// event type. Negative ids are omitted from the tags.
//
// Example:
//
//	client.WriteComplianceEvent(influxdb.ComplianceEvent{
//	    Type: "non_compliant", DeviceID: 42, PolicyID: 7, Violations: 1,
//	})
func (c *Client) WriteComplianceEvent(ev ComplianceEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(eventPoint(ev))
}

// WriteSummary records the fleet-wide count of compliant and non-compliant
// (device, policy) pairs.
func (c *Client) WriteSummary(compliant, nonCompliant int, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(summaryPoint(compliant, nonCompliant, ts))
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func eventPoint(ev ComplianceEvent) *write.Point {
	tags := map[string]string{"event": ev.Type}
	if ev.DeviceID >= 0 {
		tags["device_id"] = strconv.FormatInt(ev.DeviceID, 10)
	}
	if ev.PolicyID >= 0 {
		tags["policy_id"] = strconv.FormatInt(ev.PolicyID, 10)
	}

	fields := map[string]interface{}{
		"violations": ev.Violations,
		"failed":     ev.Failed,
	}
	if ev.RecordID > 0 {
		fields["record_id"] = ev.RecordID
	}
	if ev.Attempts >= 0 {
		fields["attempts"] = ev.Attempts
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementEvent, tags, fields, ts)
}

func summaryPoint(compliant, nonCompliant int, ts time.Time) *write.Point {
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementSummary, nil,
		map[string]interface{}{
			"compliant":     compliant,
			"non_compliant": nonCompliant,
			"total":         compliant + nonCompliant,
		}, ts)
}
