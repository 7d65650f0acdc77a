package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-compliance/internal/api"
	"github.com/nerrad567/gray-logic-compliance/internal/audit"
	"github.com/nerrad567/gray-logic-compliance/internal/evaluation"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-compliance/internal/metrics"
	"github.com/nerrad567/gray-logic-compliance/internal/notify"
	"github.com/nerrad567/gray-logic-compliance/internal/snapshot"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the compliance monitor until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), c.cfg, c.log)
		},
	}
}

// serve wires the stores, side-effect handlers and optional surfaces, then
// blocks until ctx is cancelled. Deferred closes run in reverse order.
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting compliance monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	s, err := openStores(ctx, cfg, log, audit.SourceMonitor)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing stores")
		if closeErr := s.Close(); closeErr != nil {
			log.Error("error closing stores", "error", closeErr)
		}
	}()
	log.Info("compliance stores ready",
		"driver", cfg.Database.Driver,
		"attempts_backend", cfg.Attempts.Backend,
		"escalate_after", cfg.Attempts.EscalateAfter,
	)

	checks := map[string]api.HealthChecker{"database": s.db}
	if s.redis != nil {
		checks["redis"] = s.redis
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector()
	collector.Register(registry)
	s.monitor.AddHandler(collector)
	sinks := []snapshot.Sink{collector}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		sink := metrics.NewInfluxSink(influxClient)
		s.monitor.AddHandler(sink)
		sinks = append(sinks, sink)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Escalation notifications (optional)
	if len(cfg.Notify.URLs) > 0 {
		notifier, notifyErr := notify.New(cfg.Notify.URLs)
		if notifyErr != nil {
			return fmt.Errorf("configuring notifications: %w", notifyErr)
		}
		s.monitor.AddHandler(notifier)
		log.Info("escalation notifications enabled", "services", len(cfg.Notify.URLs))
	}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		stop, mqttErr := startMQTT(ctx, cfg, log, s, checks)
		if mqttErr != nil {
			return mqttErr
		}
		defer stop()
	} else {
		log.Info("MQTT disabled")
	}

	// Summary snapshots (optional)
	if cfg.Snapshot.Enabled {
		job, jobErr := snapshot.New(s.monitor, cfg.Snapshot.Schedule, sinks...)
		if jobErr != nil {
			return fmt.Errorf("creating snapshot job: %w", jobErr)
		}
		job.SetLogger(log)
		job.Start(ctx)
		defer func() {
			log.Info("stopping snapshot job")
			job.Stop()
		}()
		log.Info("snapshot job started", "schedule", cfg.Snapshot.Schedule)
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Monitor:  s.monitor,
			Audit:    s.audit,
			Gatherer: registry,
			Checks:   checks,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startMQTT connects to the broker, publishes compliance events and, when
// enabled, starts the evaluation intake. The returned func tears both down.
func startMQTT(ctx context.Context, cfg *config.Config, log *logging.Logger, s *stores, checks map[string]api.HealthChecker) (func(), error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	checks["mqtt"] = client
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2
	s.monitor.AddHandler(evaluation.NewPublisher(client, qos))

	var intake *evaluation.Intake
	if cfg.Evaluation.Enabled {
		intake = evaluation.NewIntake(client, s.monitor, qos, cfg.GetHandlerTimeout())
		intake.SetLogger(log)
		if startErr := intake.Start(ctx); startErr != nil {
			client.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("starting evaluation intake: %w", startErr)
		}
		log.Info("evaluation intake started", "topic", mqtt.Topics{}.AllEvaluations())
	}

	return func() {
		if intake != nil {
			log.Info("stopping evaluation intake")
			if stopErr := intake.Stop(); stopErr != nil {
				log.Error("error stopping evaluation intake", "error", stopErr)
			}
		}
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}, nil
}
