package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"duet/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		ok   bool
	}{
		{"", zapcore.InfoLevel, true},
		{"debug", zapcore.DebugLevel, true},
		{"warn", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"trace", zapcore.InfoLevel, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, ok=%v", tt.in, got, err, tt.want, tt.ok)
		}
	}
}

func TestConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := build(config.LogConfig{Level: "warn"}, zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown", zap.String("channel", "near"))
	log.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "near") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "duet.log")
	var console bytes.Buffer
	log, err := build(config.LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}, zapcore.AddSync(&console))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	log.Info("track changed", zap.Int("index", 2))
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log file line is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "track changed" || entry["index"] != float64(2) {
		t.Errorf("entry = %v", entry)
	}
	if console.Len() == 0 {
		t.Errorf("console output empty")
	}
}

func TestBuildRejectsUnknownLevel(t *testing.T) {
	if _, err := build(config.LogConfig{Level: "loud"}, zapcore.AddSync(&bytes.Buffer{})); err == nil {
		t.Errorf("build accepted unknown level")
	}
}
