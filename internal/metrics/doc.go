// Package metrics exports compliance activity to Prometheus and InfluxDB.
//
// Collector counts Monitor events and holds the fleet summary gauges
// refreshed by the snapshot job. InfluxSink writes one time-series point
// per event. Both are registered on the Monitor as event handlers.
package metrics
