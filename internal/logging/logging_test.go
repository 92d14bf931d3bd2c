package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput redirects the logger to a JSON buffer while f runs.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f()
	defaultLogger = oldLogger
	return buf.String()
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &m); err != nil {
		t.Fatalf("log line %q is not JSON: %v", out, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded")
	}
}

func TestInitLoggerTo(t *testing.T) {
	defer InitLogger(LevelInfo, FormatText)

	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelWarn, FormatJSON)
	Info("hidden")
	Warn("shown", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	m := decode(t, lines[0])
	if m["msg"] != "shown" || m["key"] != "value" {
		t.Errorf("log entry = %v", m)
	}
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("time = %v, want string", m["time"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}

	buf.Reset()
	InitLoggerTo(&buf, LevelDebug, FormatText)
	Debug("text line")
	if !strings.Contains(buf.String(), "msg=\"text line\"") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-123")
	if got := GetRunID(ctx); got != "run-123" {
		t.Errorf("GetRunID() = %q", got)
	}
	if got := GetRunID(context.Background()); got != "" {
		t.Errorf("GetRunID(empty) = %q", got)
	}

	out := captureLogOutput(func() { InfoContext(ctx, "with run") })
	if m := decode(t, out); m["run_id"] != "run-123" {
		t.Errorf("run_id = %v", m["run_id"])
	}
}

func TestToolRun(t *testing.T) {
	ctx := context.Background()
	out := captureLogOutput(func() {
		ToolRun(ctx, "gs", []string{"-q", "-sDEVICE=png16m"}, 0, 1500*time.Millisecond)
	})
	m := decode(t, out)
	if m["level"] != "DEBUG" || m["tool"] != "gs" || m["argv"] != "-q -sDEVICE=png16m" || m["duration_ms"] != float64(1500) {
		t.Errorf("success entry = %v", m)
	}

	out = captureLogOutput(func() {
		ToolRun(ctx, "latex", []string{"tmp.tex"}, 1, time.Second, "dir", "/tmp/x")
	})
	m = decode(t, out)
	if m["level"] != "ERROR" || m["exit_code"] != float64(1) || m["dir"] != "/tmp/x" {
		t.Errorf("failure entry = %v", m)
	}
}

func TestEditWarningAndStage(t *testing.T) {
	ctx := WithRunID(context.Background(), "r")
	out := captureLogOutput(func() {
		EditWarning(ctx, errors.New("could not find word 7"), "token", "7")
	})
	m := decode(t, out)
	if m["level"] != "WARN" || m["msg"] != "edit_warning" || m["warning"] != "could not find word 7" || m["token"] != "7" {
		t.Errorf("edit warning entry = %v", m)
	}

	out = captureLogOutput(func() { Stage(ctx, "rasterise", "inputs", 2) })
	m = decode(t, out)
	if m["stage"] != "rasterise" || m["inputs"] != float64(2) || m["run_id"] != "r" {
		t.Errorf("stage entry = %v", m)
	}
}

func TestPlainHelpers(t *testing.T) {
	out := captureLogOutput(func() {
		Debug("d")
		Error("e", "n", 1)
		DebugContext(context.Background(), "dc")
		WarnContext(context.Background(), "wc")
		ErrorContext(context.Background(), "ec")
	})
	for _, msg := range []string{`"msg":"d"`, `"msg":"e"`, `"msg":"dc"`, `"msg":"wc"`, `"msg":"ec"`} {
		if !strings.Contains(out, msg) {
			t.Errorf("output missing %s", msg)
		}
	}
	if GetLogger() == nil {
		t.Error("GetLogger() = nil")
	}
}
