// Package evaluation connects the compliance Monitor to MQTT.
//
// Intake subscribes to compliance/evaluation/+ and applies each policy
// evaluation outcome through Monitor.Evaluate:
//
//	{"device_id": 42, "policy_id": 7, "compliant": false, "run_id": "r-19",
//	 "features": [{"feature_code": "CAMERA", "compliant": false}]}
//
// Publisher is a compliance.EventHandler that announces transitions on
// compliance/core/event/{type} and keeps a retained per-device status on
// compliance/core/device/{id}/status.
package evaluation
