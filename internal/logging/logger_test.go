package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{
			name:   "default config",
			config: nil,
			want:   "text",
		},
		{
			name: "json format",
			config: &Config{
				Level:  LevelInfo,
				Format: "json",
				Output: &bytes.Buffer{},
			},
			want: "json",
		},
		{
			name: "text format",
			config: &Config{
				Level:  LevelDebug,
				Format: "text",
				Output: &bytes.Buffer{},
			},
			want: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
			if logger.format != tt.want {
				t.Errorf("format = %q, want %q", logger.format, tt.want)
			}
		})
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)

	objLogger := logger.WithObject(42)
	objLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "object_id=42") {
		t.Errorf("Expected object_id=42 in output, got: %s", output)
	}

	buf.Reset()
	opLogger := objLogger.WithOp(1, "READ")
	opLogger.Info("op message")

	output = buf.String()
	if !strings.Contains(output, "object_id=42") {
		t.Errorf("Expected object_id=42 in op logger output, got: %s", output)
	}
	if !strings.Contains(output, "tag=1") {
		t.Errorf("Expected tag=1 in output, got: %s", output)
	}
	if !strings.Contains(output, "op=READ") {
		t.Errorf("Expected op=READ in output, got: %s", output)
	}
}

func TestLoggerWithOp(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)
	opLogger := logger.WithOp(123, "READ")
	opLogger.Debug("processing operation")

	output := buf.String()
	if !strings.Contains(output, "tag=123") {
		t.Errorf("Expected tag=123 in output, got: %s", output)
	}
	if !strings.Contains(output, "op=READ") {
		t.Errorf("Expected op=READ in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)
	testErr := errors.New("test error")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("operation failed")

	output := buf.String()
	if !strings.Contains(output, "test error") {
		t.Errorf("Expected 'test error' in output, got: %s", output)
	}

	// A nil error must not panic and must not add an error field.
	buf.Reset()
	nilLogger := logger.WithError(nil)
	nilLogger.Error("no error here")
	if strings.Contains(buf.String(), "error=") {
		t.Errorf("Expected no error field for nil error, got: %s", buf.String())
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelInfo,
		Format: "json",
		Output: &buf,
	}

	logger := NewLogger(config)
	logger.Info("hello", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"msg":"hello"`) {
		t.Errorf("Expected msg field in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("Expected key field in JSON output, got: %s", output)
	}
	if !strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Expected JSON object, got: %s", output)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelWarn,
		Format: "text",
		Output: &buf,
	}

	logger := NewLogger(config)
	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("Expected no output below configured level, got: %s", buf.String())
	}

	logger.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("Expected warn message to appear, got: %s", buf.String())
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	SetDefault(NewLogger(config))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("Expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected key=value, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	output = buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("Expected info message, got: %s", output)
	}

	buf.Reset()
	Warn("warning message")
	output = buf.String()
	if !strings.Contains(output, "warning message") {
		t.Errorf("Expected warning message, got: %s", output)
	}

	buf.Reset()
	Error("error message")
	output = buf.String()
	if !strings.Contains(output, "error message") {
		t.Errorf("Expected error message, got: %s", output)
	}
}
