package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"beveragedetect/internal/config"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()

	dir := t.TempDir()
	l, err := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestLogger_WritesPerLevelFiles(t *testing.T) {
	l, dir := newTestLogger(t)

	l.Info("model loaded from %s", "best.onnx")
	l.Warning("queue %d%% full", 90)
	l.Error("decode failed: %v", "bad header")
	l.sugar.Sync()

	if got := readLog(t, dir, InfoFile); !strings.Contains(got, "model loaded from best.onnx") {
		t.Errorf("info.log missing entry: %q", got)
	}
	if got := readLog(t, dir, InfoFile); strings.Contains(got, "decode failed") {
		t.Errorf("info.log should not contain error entries: %q", got)
	}
	if got := readLog(t, dir, WarningFile); !strings.Contains(got, "queue 90% full") {
		t.Errorf("warning.log missing entry: %q", got)
	}
	if got := readLog(t, dir, ErrorFile); !strings.Contains(got, "decode failed: bad header") {
		t.Errorf("error.log missing entry: %q", got)
	}
}

func TestLogger_CleanLogs(t *testing.T) {
	l, dir := newTestLogger(t)

	l.Warning("something odd")
	l.sugar.Sync()

	if err := l.CleanLogs(WarningFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	if got := readLog(t, dir, WarningFile); got != "" {
		t.Errorf("Expected empty warning.log, got %q", got)
	}

	if err := l.CleanLogs("../etc/passwd"); err == nil {
		t.Error("Expected error for unknown log file")
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("ignored %d", 1)
	l.Error("ignored")
}
