package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
service:
  name: "compliance-test"
database:
  driver: "sqlite3"
  path: "/tmp/compliance-test.db"
  wal_mode: true
  busy_timeout: 3
attempts:
  backend: "redis"
  escalate_after: 5
redis:
  addr: "redis:6379"
mqtt:
  enabled: true
  broker:
    host: "broker"
    port: 1884
  qos: 2
evaluation:
  enabled: true
  handler_timeout: 4
api:
  port: 9000
notify:
  urls:
    - "generic://example.com/hook"
snapshot:
  enabled: true
  schedule: "@every 1m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Name != "compliance-test" {
		t.Errorf("Service.Name = %q, want %q", cfg.Service.Name, "compliance-test")
	}
	if cfg.Database.Path != "/tmp/compliance-test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Database.BusyTimeout != 3 {
		t.Errorf("Database.BusyTimeout = %d, want 3", cfg.Database.BusyTimeout)
	}
	if cfg.Attempts.Backend != AttemptsBackendRedis {
		t.Errorf("Attempts.Backend = %q, want redis", cfg.Attempts.Backend)
	}
	if cfg.Attempts.EscalateAfter != 5 {
		t.Errorf("Attempts.EscalateAfter = %d, want 5", cfg.Attempts.EscalateAfter)
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.ClientID != "compliance-core" {
		t.Errorf("MQTT.Broker.ClientID = %q, want default", cfg.MQTT.Broker.ClientID)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if len(cfg.Notify.URLs) != 1 {
		t.Errorf("Notify.URLs = %v, want 1 entry", cfg.Notify.URLs)
	}
	if cfg.Snapshot.Schedule != "@every 1m" {
		t.Errorf("Snapshot.Schedule = %q", cfg.Snapshot.Schedule)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "database: [unclosed")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load() error = %v, want parsing error", err)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: "mysql"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error")
	}
	if !strings.Contains(err.Error(), "database.driver") {
		t.Errorf("Load() error = %v, want database.driver error", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "missing service name",
			modify:  func(c *Config) { c.Service.Name = "" },
			wantErr: "service.name",
		},
		{
			name:    "sqlite without path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "postgres without dsn",
			modify:  func(c *Config) { c.Database.Driver = DriverPostgres },
			wantErr: "database.dsn",
		},
		{
			name: "postgres with dsn",
			modify: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.DSN = "postgres://localhost/compliance?sslmode=disable"
			},
		},
		{
			name:    "unknown attempts backend",
			modify:  func(c *Config) { c.Attempts.Backend = "memcached" },
			wantErr: "attempts.backend",
		},
		{
			name: "redis backend without addr",
			modify: func(c *Config) {
				c.Attempts.Backend = AttemptsBackendRedis
				c.Redis.Addr = ""
			},
			wantErr: "redis.addr",
		},
		{
			name:    "negative escalation threshold",
			modify:  func(c *Config) { c.Attempts.EscalateAfter = -1 },
			wantErr: "attempts.escalate_after",
		},
		{
			name:    "invalid qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "evaluation without mqtt",
			modify:  func(c *Config) { c.Evaluation.Enabled = true },
			wantErr: "evaluation.enabled",
		},
		{
			name:    "api port out of range",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:   "disabled api ignores port",
			modify: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
		},
		{
			name: "snapshot without schedule",
			modify: func(c *Config) {
				c.Snapshot.Enabled = true
				c.Snapshot.Schedule = " "
			},
			wantErr: "snapshot.schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.Timeouts = APITimeoutConfig{Read: 10, Write: 20, Idle: 30}
	cfg.Evaluation.HandlerTimeout = 7

	if got := cfg.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 20s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 30*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetHandlerTimeout(); got != 7*time.Second {
		t.Errorf("GetHandlerTimeout() = %v, want 7s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("COMPLIANCE_DATABASE_DRIVER", "postgres")
	t.Setenv("COMPLIANCE_DATABASE_DSN", "postgres://db/compliance")
	t.Setenv("COMPLIANCE_ATTEMPTS_BACKEND", "redis")
	t.Setenv("COMPLIANCE_ATTEMPTS_ESCALATE_AFTER", "4")
	t.Setenv("COMPLIANCE_REDIS_ADDR", "cache:6379")
	t.Setenv("COMPLIANCE_MQTT_HOST", "mqtt.local")
	t.Setenv("COMPLIANCE_MQTT_USERNAME", "svc")
	t.Setenv("COMPLIANCE_MQTT_PASSWORD", "secret")
	t.Setenv("COMPLIANCE_INFLUXDB_TOKEN", "token")
	t.Setenv("COMPLIANCE_API_HOST", "127.0.0.1")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://db/compliance" {
		t.Errorf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.Attempts.Backend != AttemptsBackendRedis {
		t.Errorf("Attempts.Backend = %q, want redis", cfg.Attempts.Backend)
	}
	if cfg.Attempts.EscalateAfter != 4 {
		t.Errorf("Attempts.EscalateAfter = %d, want 4", cfg.Attempts.EscalateAfter)
	}
	if cfg.Redis.Addr != "cache:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.MQTT.Broker.Host != "mqtt.local" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Username != "svc" || cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.InfluxDB.Token != "token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q", cfg.API.Host)
	}
}

func TestApplyEnvOverrides_IgnoresBadInteger(t *testing.T) {
	t.Setenv("COMPLIANCE_ATTEMPTS_ESCALATE_AFTER", "three")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Attempts.EscalateAfter != 0 {
		t.Errorf("Attempts.EscalateAfter = %d, want 0", cfg.Attempts.EscalateAfter)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want sqlite3", cfg.Database.Driver)
	}
	if cfg.Attempts.Backend != AttemptsBackendDatabase {
		t.Errorf("Attempts.Backend = %q, want database", cfg.Attempts.Backend)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
}
