package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

// Collector holds the compliance Prometheus collectors.
type Collector struct {
	events      *prometheus.CounterVec
	violations  prometheus.Counter
	pairs       *prometheus.GaugeVec
	lastSummary prometheus.Gauge
}

// NewCollector creates unregistered collectors.
func NewCollector() *Collector {
	return &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_events_total",
			Help: "Total number of compliance monitor events by type",
		}, []string{"type"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compliance_feature_violations_total",
			Help: "Total number of feature violations reported",
		}),
		pairs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compliance_pairs",
			Help: "Device and policy pairs by current compliance status",
		}, []string{"status"}),
		lastSummary: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_summary_timestamp_seconds",
			Help: "Unix time of the last compliance summary snapshot",
		}),
	}
}

// Register registers the collectors. Call once at startup.
func (c *Collector) Register(registry prometheus.Registerer) {
	registry.MustRegister(c.events, c.violations, c.pairs, c.lastSummary)
}

// HandleComplianceEvent implements compliance.EventHandler.
func (c *Collector) HandleComplianceEvent(_ context.Context, ev compliance.Event) error {
	c.events.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == compliance.EventNonCompliant {
		c.violations.Add(float64(len(ev.Violations)))
	}
	return nil
}

// ObserveSummary sets the pair gauges from a ledger summary.
func (c *Collector) ObserveSummary(s compliance.Summary, at time.Time) {
	c.pairs.WithLabelValues(compliance.StatusCompliant.String()).Set(float64(s.Compliant))
	c.pairs.WithLabelValues(compliance.StatusNonCompliant.String()).Set(float64(s.NonCompliant))
	c.lastSummary.Set(float64(at.Unix()))
}
