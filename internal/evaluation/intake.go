package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/mqtt"
)

const defaultHandlerTimeout = 10 * time.Second

// ErrInvalidPayload reports an evaluation message that cannot be applied.
var ErrInvalidPayload = errors.New("evaluation: invalid payload")

// Evaluator applies an outcome. Satisfied by *compliance.Monitor.
type Evaluator interface {
	Evaluate(ctx context.Context, o compliance.Outcome) (int64, error)
}

type featurePayload struct {
	FeatureCode string `json:"feature_code"`
	Compliant   bool   `json:"compliant"`
}

type outcomePayload struct {
	DeviceID  *int64           `json:"device_id"`
	PolicyID  *int64           `json:"policy_id"`
	Compliant *bool            `json:"compliant"`
	RunID     string           `json:"run_id"`
	Features  []featurePayload `json:"features"`
}

// Intake feeds evaluation messages into the Monitor.
type Intake struct {
	broker    Broker
	evaluator Evaluator
	qos       byte
	timeout   time.Duration

	logger Logger

	mu      sync.Mutex
	baseCtx context.Context
	running bool
}

// NewIntake creates an Intake. A non-positive timeout selects 10s.
func NewIntake(broker Broker, evaluator Evaluator, qos byte, timeout time.Duration) *Intake {
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	return &Intake{
		broker:    broker,
		evaluator: evaluator,
		qos:       qos,
		timeout:   timeout,
		logger:    noopLogger{},
		baseCtx:   context.Background(),
	}
}

// SetLogger sets the logger for the intake.
func (i *Intake) SetLogger(logger Logger) {
	i.logger = logger
}

// Start subscribes to every device's evaluation topic. Handlers derive their
// contexts from ctx, so cancelling it aborts in-flight evaluations.
func (i *Intake) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return nil
	}

	topic := mqtt.Topics{}.AllEvaluations()
	i.baseCtx = ctx
	if err := i.broker.Subscribe(topic, i.qos, i.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	i.running = true
	return nil
}

// Stop unsubscribes. Messages already being handled run to completion.
func (i *Intake) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return nil
	}
	i.running = false

	topic := mqtt.Topics{}.AllEvaluations()
	if err := i.broker.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}
	return nil
}

func (i *Intake) context() context.Context {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.baseCtx
}

// handle is the MQTT message handler. Monitor errors are returned for the
// MQTT client to log; the message is never redelivered.
func (i *Intake) handle(topic string, payload []byte) error {
	outcome, err := parseOutcome(topic, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(i.context(), i.timeout)
	defer cancel()

	recordID, err := i.evaluator.Evaluate(ctx, outcome)
	if err != nil {
		return fmt.Errorf("evaluating device %d policy %d: %w", outcome.DeviceID, outcome.PolicyID, err)
	}

	i.logger.Debug("evaluation applied",
		"device_id", outcome.DeviceID,
		"policy_id", outcome.PolicyID,
		"compliant", outcome.Compliant,
		"record_id", recordID,
		"run_id", outcome.RunID,
	)
	return nil
}

// parseOutcome decodes an evaluation message. The device id comes from the
// topic; a device_id in the payload must agree with it.
func parseOutcome(topic string, payload []byte) (compliance.Outcome, error) {
	var o compliance.Outcome

	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		return o, err
	}

	var p outcomePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return o, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if p.DeviceID != nil && *p.DeviceID != deviceID {
		return o, fmt.Errorf("%w: device_id %d does not match topic %s", ErrInvalidPayload, *p.DeviceID, topic)
	}
	if p.PolicyID == nil {
		return o, fmt.Errorf("%w: policy_id is required", ErrInvalidPayload)
	}
	if p.Compliant == nil {
		return o, fmt.Errorf("%w: compliant is required", ErrInvalidPayload)
	}

	o = compliance.Outcome{
		DeviceID:  deviceID,
		PolicyID:  *p.PolicyID,
		Compliant: *p.Compliant,
		RunID:     p.RunID,
	}
	if !o.Compliant {
		o.Violations = make([]compliance.FeatureViolation, 0, len(p.Features))
		for _, f := range p.Features {
			o.Violations = append(o.Violations, compliance.FeatureViolation{
				FeatureCode: f.FeatureCode,
				Compliant:   f.Compliant,
			})
		}
	}
	return o, nil
}

func deviceFromTopic(topic string) (int64, error) {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 || idx == len(topic)-1 {
		return 0, fmt.Errorf("%w: no device id in topic %q", ErrInvalidPayload, topic)
	}
	id, err := strconv.ParseInt(topic[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: device id in topic %q: %w", ErrInvalidPayload, topic, err)
	}
	return id, nil
}
