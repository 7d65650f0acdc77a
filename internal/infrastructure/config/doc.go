// Package config handles loading and validating compliance service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with COMPLIANCE_* environment variables
//   - Validation of required fields and supported drivers/backends
//   - Default value handling
//
// Secrets (database DSN, Redis and MQTT passwords, InfluxDB token) should be
// supplied through environment variables rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Database.Driver)
package config
