package evaluation

import "github.com/nerrad567/gray-logic-compliance/internal/infrastructure/mqtt"

// Broker is the subset of the MQTT client used by this package.
// Satisfied by *mqtt.Client.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by Intake.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
