package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing payloads (1MB), in line with typical broker limits.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// QoS 0 is fire-and-forget, 1 at-least-once, 2 exactly-once. Retained
// messages are kept by the broker for new subscribers; use them for status
// topics, not for events.
//
// Example:
//
//	topic := mqtt.Topics{}.Event("non_compliant")
//	err := client.Publish(topic, payload, 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message with the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.QoS(), true)
}

// QoS returns the configured default QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}
