package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLog(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestNewLogger_WritesPerLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := NewLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Info("camera %s started", "cam0")
	l.Warning("location unavailable")
	l.Error("submit failed: %v", "timeout")
	l.Debug("hidden at info level")

	info := readLog(t, dir, InfoFile)
	if !strings.Contains(info, "camera cam0 started") {
		t.Errorf("Expected info entry in %s, got %q", InfoFile, info)
	}
	if strings.Contains(info, "hidden at info level") {
		t.Error("Debug entry should be filtered at info level")
	}
	if strings.Contains(info, "submit failed") {
		t.Error("Error entry should not reach info.log")
	}

	if warn := readLog(t, dir, WarningFile); !strings.Contains(warn, "location unavailable") {
		t.Errorf("Expected warning entry, got %q", warn)
	}
	if errLog := readLog(t, dir, ErrorFile); !strings.Contains(errLog, "submit failed: timeout") {
		t.Errorf("Expected error entry, got %q", errLog)
	}
}

func TestCleanLogs(t *testing.T) {
	dir := t.TempDir()

	l, err := NewLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Warning("first warning")
	if err := l.CleanLogs(WarningFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	if warn := readLog(t, dir, WarningFile); warn != "" {
		t.Errorf("Expected empty warning.log, got %q", warn)
	}

	if err := l.CleanLogs("../secrets"); err == nil {
		t.Error("Expected error for unknown log file")
	}
}

func TestWith_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsole(&buf, "debug")

	l.With(map[string]interface{}{"episode": "abc"}).Debug("flushed")

	out := buf.String()
	if !strings.Contains(out, "episode=abc") || !strings.Contains(out, "flushed") {
		t.Errorf("Expected field and message in output, got %q", out)
	}
	if err := l.CleanLogs(InfoFile); err != nil {
		t.Errorf("Console logger CleanLogs should be a no-op, got %v", err)
	}
}
