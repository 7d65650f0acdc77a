package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
)

func TestNew_JSONFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	logger := New(cfg, "compliance", "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil without file sink", err)
	}
}

func TestNew_TextFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}

	logger := New(cfg, "compliance", "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.log")
	cfg := config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stderr",
		File: config.FileLoggingConfig{
			Path:    path,
			MaxSize: 1,
		},
	}

	logger := New(cfg, "compliance", "1.0.0")
	logger.Info("marked compliant", "device_id", 42)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "marked compliant") {
		t.Errorf("log file = %q, want message", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug level", input: "debug", expected: slog.LevelDebug},
		{name: "info level", input: "info", expected: slog.LevelInfo},
		{name: "warn level", input: "warn", expected: slog.LevelWarn},
		{name: "warning level", input: "warning", expected: slog.LevelWarn},
		{name: "error level", input: "error", expected: slog.LevelError},
		{name: "unknown defaults to info", input: "unknown", expected: slog.LevelInfo},
		{name: "empty defaults to info", input: "", expected: slog.LevelInfo},
		{name: "case insensitive", input: "DEBUG", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "info"}, "compliance", "1.0.0")
	childLogger := logger.With("component", "monitor")

	if childLogger == nil {
		t.Fatal("expected non-nil child logger")
	}
	if childLogger == logger {
		t.Error("expected child logger to be different from parent")
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestLogger_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer

	handler := newHandler(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "compliance-test", "v9")
	logger := &Logger{Logger: slog.New(handler)}
	logger.Debug("filtered out")
	logger.Info("test message", "key", "value")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if logEntry["service"] != "compliance-test" {
		t.Errorf("expected service='compliance-test', got %v", logEntry["service"])
	}
	if logEntry["version"] != "v9" {
		t.Errorf("expected version='v9', got %v", logEntry["version"])
	}
	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got %v", logEntry["msg"])
	}
	if logEntry["key"] != "value" {
		t.Errorf("expected key='value', got %v", logEntry["key"])
	}
}
