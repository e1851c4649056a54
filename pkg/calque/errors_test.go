package calque

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWrapErr(t *testing.T) {
	ctx := WithRequestID(WithTraceID(context.Background(), "t-1"), "r-1")
	cause := errors.New("connection refused")

	err := WrapErr(ctx, cause, "embedding failed").Tag(slog.String("model", "bge-m3"))

	if got, want := err.Error(), "embedding failed: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(cause) = false")
	}
	if err.TraceID() != "t-1" || err.RequestID() != "r-1" {
		t.Errorf("ids = %q/%q", err.TraceID(), err.RequestID())
	}
	if len(err.LogAttrs()) != 4 {
		t.Errorf("LogAttrs() len = %d, want 4", len(err.LogAttrs()))
	}
}

func TestNewErr(t *testing.T) {
	err := NewErr(context.Background(), "missing key").Tags(slog.Int("a", 1), slog.Int("b", 2))
	if err.Error() != "missing key" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("Unwrap() should be nil")
	}
	if len(err.Attrs()) != 2 {
		t.Errorf("Attrs() len = %d", len(err.Attrs()))
	}
	if !errors.Is(err, NewErr(context.Background(), "missing key")) {
		t.Error("errors.Is should match on message")
	}
}

func TestError_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(WithRequestID(context.Background(), "req-9"), logger)

	WrapErr(ctx, errors.New("timeout"), "search failed").Log(ctx)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "search failed", "timeout", "request_id=req-9"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
