package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Supported attempt counter backends.
const (
	AttemptsBackendDatabase = "database"
	AttemptsBackendRedis    = "redis"
)

// Config is the root configuration structure for the compliance service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	Attempts   AttemptsConfig   `yaml:"attempts"`
	Redis      RedisConfig      `yaml:"redis"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
	Notify     NotifyConfig     `yaml:"notify"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
}

// ServiceConfig identifies this instance in logs, MQTT client IDs and metrics.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig contains the compliance store settings.
type DatabaseConfig struct {
	// Driver is "sqlite3" (default) or "postgres".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Ignored for postgres.
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// DSN is the lib/pq connection string. Required for postgres.
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AttemptsConfig selects where monitoring attempt counters live.
type AttemptsConfig struct {
	Backend string `yaml:"backend"`

	// EscalateAfter sends an escalation notification when a device's
	// consecutive failed attempts reach this value. 0 disables escalation.
	EscalateAfter int `yaml:"escalate_after"`
}

// RedisConfig contains Redis connection settings for the redis attempts backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// EvaluationConfig controls the MQTT intake of policy evaluation outcomes.
type EvaluationConfig struct {
	Enabled bool `yaml:"enabled"`

	// HandlerTimeout bounds a single outcome's storage work (seconds).
	HandlerTimeout int `yaml:"handler_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the read-only HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating file log settings. Empty Path disables file output.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// NotifyConfig lists shoutrrr service URLs that receive escalation notices.
type NotifyConfig struct {
	URLs []string `yaml:"urls"`
}

// SnapshotConfig controls the periodic compliance summary job.
type SnapshotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: COMPLIANCE_SECTION_KEY
// For example: COMPLIANCE_DATABASE_PATH, COMPLIANCE_REDIS_ADDR
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "compliance",
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "./data/compliance.db",
			WALMode:      true,
			BusyTimeout:  5,
			MaxOpenConns: 10,
		},
		Attempts: AttemptsConfig{
			Backend: AttemptsBackendDatabase,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "compliance:attempts:",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "compliance-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Evaluation: EvaluationConfig{
			HandlerTimeout: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Snapshot: SnapshotConfig{
			Schedule: "@every 5m",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: COMPLIANCE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("COMPLIANCE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("COMPLIANCE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("COMPLIANCE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Attempts
	if v := os.Getenv("COMPLIANCE_ATTEMPTS_BACKEND"); v != "" {
		cfg.Attempts.Backend = v
	}
	if v := os.Getenv("COMPLIANCE_ATTEMPTS_ESCALATE_AFTER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Attempts.EscalateAfter = n
		}
	}

	// Redis
	if v := os.Getenv("COMPLIANCE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("COMPLIANCE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// MQTT
	if v := os.Getenv("COMPLIANCE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("COMPLIANCE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("COMPLIANCE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("COMPLIANCE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("COMPLIANCE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite3")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite3, postgres)", c.Database.Driver))
	}

	switch c.Attempts.Backend {
	case AttemptsBackendDatabase:
	case AttemptsBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when attempts.backend is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("attempts.backend %q is not supported (database, redis)", c.Attempts.Backend))
	}
	if c.Attempts.EscalateAfter < 0 {
		errs = append(errs, "attempts.escalate_after must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Evaluation.Enabled && !c.MQTT.Enabled {
		errs = append(errs, "evaluation.enabled requires mqtt.enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Snapshot.Enabled && strings.TrimSpace(c.Snapshot.Schedule) == "" {
		errs = append(errs, "snapshot.schedule is required when snapshot.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetHandlerTimeout returns the evaluation handler timeout as a Duration.
func (c *Config) GetHandlerTimeout() time.Duration {
	return time.Duration(c.Evaluation.HandlerTimeout) * time.Second
}
