package mqtt

import (
	"fmt"
	"strconv"
)

// Topic prefixes for the compliance service.
const (
	// TopicPrefix is the root of every compliance topic.
	TopicPrefix = "compliance"

	// TopicPrefixCore is the base for topics published by this service.
	TopicPrefixCore = "compliance/core"

	// TopicPrefixSystem is the base for service presence topics.
	TopicPrefixSystem = "compliance/system"
)

// Topics provides builders for compliance MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Evaluation(42)   // compliance/evaluation/42
//	topics.DeviceStatus(42) // compliance/core/device/42/status
type Topics struct{}

// Evaluation returns the topic an evaluator publishes a device's outcome on.
//
// Example: compliance/evaluation/42
func (Topics) Evaluation(deviceID int64) string {
	return fmt.Sprintf("%s/evaluation/%s", TopicPrefix, strconv.FormatInt(deviceID, 10))
}

// DeviceStatus returns the retained compliance status topic for a device.
//
// Example: compliance/core/device/42/status
func (Topics) DeviceStatus(deviceID int64) string {
	return fmt.Sprintf("%s/device/%s/status", TopicPrefixCore, strconv.FormatInt(deviceID, 10))
}

// Event returns the topic for compliance events of one type.
//
// Example: compliance/core/event/non_compliant
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// SystemStatus returns the service presence topic (online/offline, LWT).
//
// Example: compliance/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEvaluations matches every device's evaluation topic.
//
// Pattern: compliance/evaluation/+
func (Topics) AllEvaluations() string {
	return fmt.Sprintf("%s/evaluation/+", TopicPrefix)
}

// AllDeviceStatuses matches every device status topic.
//
// Pattern: compliance/core/device/+/status
func (Topics) AllDeviceStatuses() string {
	return fmt.Sprintf("%s/device/+/status", TopicPrefixCore)
}

// AllEvents matches every compliance event topic.
//
// Pattern: compliance/core/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}
