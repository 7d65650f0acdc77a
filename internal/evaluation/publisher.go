package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/mqtt"
)

type eventMessage struct {
	Type      string   `json:"type"`
	DeviceID  *int64   `json:"device_id,omitempty"`
	PolicyID  *int64   `json:"policy_id,omitempty"`
	RecordID  *int64   `json:"record_id,omitempty"`
	Features  []string `json:"features,omitempty"`
	Attempts  *int     `json:"attempts,omitempty"`
	RunID     string   `json:"run_id,omitempty"`
	Error     string   `json:"error,omitempty"`
	Timestamp string   `json:"timestamp"`
}

type statusMessage struct {
	DeviceID  int64  `json:"device_id"`
	PolicyID  int64  `json:"policy_id"`
	Status    string `json:"status"`
	RecordID  *int64 `json:"record_id,omitempty"`
	Attempts  *int   `json:"attempts,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// Publisher announces Monitor events over MQTT.
type Publisher struct {
	broker Broker
	qos    byte
}

// NewPublisher creates a Publisher using qos for every message.
func NewPublisher(broker Broker, qos byte) *Publisher {
	return &Publisher{broker: broker, qos: qos}
}

// HandleComplianceEvent implements compliance.EventHandler.
func (p *Publisher) HandleComplianceEvent(_ context.Context, ev compliance.Event) error {
	topics := mqtt.Topics{}

	payload, err := json.Marshal(newEventMessage(ev))
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	if err := p.broker.Publish(topics.Event(string(ev.Type)), payload, p.qos, false); err != nil {
		return fmt.Errorf("publishing %s event: %w", ev.Type, err)
	}

	status, ok := newStatusMessage(ev)
	if !ok {
		return nil
	}
	payload, err = json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshalling device status: %w", err)
	}
	if err := p.broker.Publish(topics.DeviceStatus(ev.DeviceID), payload, p.qos, true); err != nil {
		return fmt.Errorf("publishing device %d status: %w", ev.DeviceID, err)
	}
	return nil
}

func newEventMessage(ev compliance.Event) eventMessage {
	m := eventMessage{
		Type:      string(ev.Type),
		DeviceID:  optionalID(ev.DeviceID),
		PolicyID:  optionalID(ev.PolicyID),
		RecordID:  optionalID(ev.RecordID),
		RunID:     ev.RunID,
		Timestamp: timestamp(ev.Timestamp),
	}
	if m.RecordID != nil && *m.RecordID == 0 {
		m.RecordID = nil
	}
	for _, v := range ev.Violations {
		m.Features = append(m.Features, v.FeatureCode)
	}
	if ev.Attempts >= 0 {
		n := ev.Attempts
		m.Attempts = &n
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return m
}

// newStatusMessage builds the retained device status for verdict changes.
// Failed reports and operator actions leave the retained status alone.
func newStatusMessage(ev compliance.Event) (statusMessage, bool) {
	var status compliance.Status
	switch ev.Type {
	case compliance.EventNonCompliant:
		status = compliance.StatusNonCompliant
	case compliance.EventCompliant:
		if ev.Err != nil {
			return statusMessage{}, false
		}
		status = compliance.StatusCompliant
	default:
		return statusMessage{}, false
	}

	m := statusMessage{
		DeviceID:  ev.DeviceID,
		PolicyID:  ev.PolicyID,
		Status:    status.String(),
		RecordID:  optionalID(ev.RecordID),
		UpdatedAt: timestamp(ev.Timestamp),
	}
	if ev.Attempts >= 0 {
		n := ev.Attempts
		m.Attempts = &n
	}
	return m, true
}

func optionalID(id int64) *int64 {
	if id < 0 {
		return nil
	}
	return &id
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
