package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("New() with bad level expected error")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New() with bad format expected error")
	}
}

func decode(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", line, err)
	}
	return m
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Debug("hidden")
	log.Info("cache hit", "similarity", 0.97, "stage", "semcache")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	m := decode(t, lines[0])
	if m["message"] != "cache hit" || m["level"] != "info" {
		t.Errorf("record = %v", m)
	}
	if m["similarity"] != 0.97 || m["stage"] != "semcache" {
		t.Errorf("attributes = %v", m)
	}
	if _, ok := m["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Warn("slow stage", "stage", "retrieve")
	if !strings.Contains(buf.String(), "slow stage") || !strings.Contains(buf.String(), "retrieve") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestZerologHandler_AttrsGroupsAndKinds(t *testing.T) {
	var buf bytes.Buffer
	h := NewZerologHandler(zerolog.New(&buf).Level(zerolog.DebugLevel))
	log := slog.New(h).With("service", "medrag").WithGroup("req")

	log.Debug("done",
		"err", errors.New("boom"),
		"took", 1500*time.Millisecond,
		slog.Group("docs", "dense", 10, "lexical", 15),
	)

	m := decode(t, strings.TrimSpace(buf.String()))
	if m["service"] != "medrag" {
		t.Errorf("service = %v", m["service"])
	}
	req, ok := m["req"].(map[string]any)
	if !ok {
		t.Fatalf("req group missing: %v", m)
	}
	if req["err"] != "boom" || req["took"] != "1.5s" {
		t.Errorf("req = %v", req)
	}
	docs, ok := req["docs"].(map[string]any)
	if !ok || docs["dense"] != float64(10) {
		t.Errorf("docs = %v", req["docs"])
	}
}

func TestZerologHandler_Enabled(t *testing.T) {
	h := NewZerologHandler(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled at warn")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("error should be enabled at warn")
	}
}
