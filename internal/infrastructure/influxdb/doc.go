// Package influxdb writes compliance time-series to InfluxDB v2.
//
// Two measurements are produced:
//   - compliance_event: one point per monitor transition, tagged by device,
//     policy and event type
//   - compliance_summary: periodic fleet counts of compliant and
//     non-compliant (device, policy) pairs
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSummary(120, 3, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async failures go to the SetOnError callback; connection
// and health check errors are returned directly.
package influxdb
