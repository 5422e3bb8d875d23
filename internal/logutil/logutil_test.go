package logutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerJSONToStderr(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLoggerFromConfig(loggerConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newLoggerFromConfig() error = %v", err)
	}
	logger.Debug("session_init_ok", "bot", "porter_bot")
	if !strings.Contains(buf.String(), `"msg":"session_init_ok"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewLoggerRejectsUnknownValues(t *testing.T) {
	if _, err := newLoggerFromConfig(loggerConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := newLoggerFromConfig(loggerConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "porter.log")
	var buf bytes.Buffer
	logger, err := newLoggerFromConfig(loggerConfig{Level: "info", File: path}, &buf)
	if err != nil {
		t.Fatalf("newLoggerFromConfig() error = %v", err)
	}
	logger.Info("task_start", "task_id", "t1")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "task_start") || !strings.Contains(buf.String(), "task_start") {
		t.Fatalf("log line missing: file=%q stderr=%q", data, buf.String())
	}
}
