// Package api provides the read-only HTTP API of the compliance service.
//
// Routes:
//
//	GET /health
//	GET /metrics
//	GET /api/v1/summary
//	GET /api/v1/devices/{deviceID}/compliance
//	GET /api/v1/devices/{deviceID}/history?limit=
//	GET /api/v1/devices/{deviceID}/attempts
//	GET /api/v1/devices/{deviceID}/policies/{policyID}/compliance
//	GET /api/v1/records/{recordID}/violations
//	GET /api/v1/audit?action=&entity_type=&entity_id=&limit=&offset=
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Writes happen only through MQTT evaluation intake and the CLI.
package api
