// pkg/log/log_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, c := range []struct {
		s   string
		lvl slog.Level
		ok  bool
	}{
		{"debug", slog.LevelDebug, true},
		{"", slog.LevelInfo, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	} {
		lvl, err := ParseLevel(c.s)
		if lvl != c.lvl {
			t.Errorf("%q: expected level %v, got %v", c.s, c.lvl, lvl)
		}
		if (err == nil) != c.ok {
			t.Errorf("%q: unexpected error result %v", c.s, err)
		}
	}
}

func TestCallstackAttr(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriter(&buf, "debug")
	lg.Infof("DEPART: Plane %d from AP %d -> AP %d", 3, 0, 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unable to decode record %q: %v", buf.String(), err)
	}
	if rec["msg"] != "DEPART: Plane 3 from AP 0 -> AP 1" {
		t.Errorf("expected formatted message, got %v", rec["msg"])
	}
	if _, ok := rec["callstack"]; !ok {
		t.Errorf("expected callstack attribute in %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriter(&buf, "warn")
	lg.Debug("debug")
	lg.Info("info")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}
	lg.Warn("warn")
	if !strings.Contains(buf.String(), `"msg":"warn"`) {
		t.Errorf("expected warning record, got %q", buf.String())
	}
}

func TestNilLogger(t *testing.T) {
	var lg *Logger
	// None of these should panic.
	lg.Debug("x")
	lg.Debugf("%d", 1)
	lg.Info("x")
	lg.Infof("%d", 1)
	if lg.With("a", 1) != nil {
		t.Errorf("expected nil logger from With on nil")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriter(&buf, "info").With(slog.Int("airport", 4))
	lg.Info("Flight requests from airport 4 stopped")
	if !strings.Contains(buf.String(), `"airport":4`) {
		t.Errorf("expected airport attribute, got %q", buf.String())
	}
}

func TestTeeHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := teeHandler{
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	lg := slog.New(h)
	lg.Info("info only")
	lg.Warn("both")

	if !strings.Contains(a.String(), "info only") || !strings.Contains(a.String(), "both") {
		t.Errorf("expected both records in JSON output, got %q", a.String())
	}
	if strings.Contains(b.String(), "info only") {
		t.Errorf("text handler should have filtered info record, got %q", b.String())
	}
	if !strings.Contains(b.String(), "both") {
		t.Errorf("expected warning in text output, got %q", b.String())
	}
}
