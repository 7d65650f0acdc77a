// Package mqtt provides MQTT client connectivity for the compliance service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	compliance/evaluation/{device_id}        evaluator -> service
//	compliance/core/device/{device_id}/status service -> subscribers (retained)
//	compliance/core/event/{type}             service -> subscribers
//	compliance/system/status                 presence, LWT (retained)
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) outside local development
//   - Supply credentials via COMPLIANCE_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEvaluations(), 1, handler)
package mqtt
