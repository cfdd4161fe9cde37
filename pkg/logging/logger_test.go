package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"", slog.LevelInfo, true},
		{"Warning", slog.LevelWarn, true},
		{"ERROR", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNewLoggerJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewComponentLogger(NewLogger(&buf, "debug", "json"), "interview")
	log.Debug("round_started", "round", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "round_started" || entry["component"] != "interview" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["source"]; !ok {
		t.Fatalf("expected source location in json output")
	}
}

func TestNewLoggerTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestOutputRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mockinterview.log")
	w, closeFn := Output(Config{File: path, MaxSizeMB: 1})
	log := NewLogger(w, "info", "text")
	log.Info("session_ended", "rounds", 3)
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "msg=session_ended rounds=3") {
		t.Fatalf("unexpected log file %q", b)
	}
}

func TestOutputDefaultsToStdout(t *testing.T) {
	w, closeFn := Output(Config{})
	if w != os.Stdout {
		t.Fatalf("expected stdout")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
