// Package logging provides structured logging for the compliance service.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Optional rotating file output via lumberjack
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//	  file:
//	    path: "/var/log/compliance/core.log"
//	    max_size: 10     # megabytes
//	    max_backups: 3
//	    max_age: 28      # days
//	    compress: true
//
// # Usage
//
//	logger := logging.New(cfg.Logging, cfg.Service.Name, "1.0.0")
//	defer logger.Close()
//	logger.Info("recorded non-compliance", "device_id", 42, "policy_id", 7)
//
// Never log secrets such as DSNs, tokens or passwords.
package logging
