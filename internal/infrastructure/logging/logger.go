package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
)

// Logger wraps slog.Logger with compliance service defaults.
//
// It provides structured logging with default fields and level-based filtering.
// When file logging is configured the rotating file sink is owned by the
// Logger and released by Close.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination, optionally teed to a rotating file
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - service: Service name for default field
//   - version: Application version for default field
func New(cfg config.LoggingConfig, service, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	var closer io.Closer
	if cfg.File.Path != "" {
		rotator := newRotator(cfg.File)
		output = io.MultiWriter(output, rotator)
		closer = rotator
	}

	return &Logger{
		Logger: slog.New(newHandler(output, cfg, service, version)),
		closer: closer,
	}
}

// newRotator builds the lumberjack sink for file logging.
func newRotator(cfg config.FileLoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// newHandler creates the slog handler for the configured format with default fields attached.
func newHandler(w io.Writer, cfg config.LoggingConfig, service, version string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return handler.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("version", version),
	})
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // Includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Close releases the rotating file sink, if any. Loggers derived with With
// share the parent's sink and must not be closed.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
// It should only be used during early startup before config is available.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "compliance", "dev")
}
