package calque

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
)

func upper() Handler {
	return HandlerFunc(func(req *Request, res *Response) error {
		var s string
		if err := Read(req, &s); err != nil {
			return err
		}
		return Write(res, strings.ToUpper(s))
	})
}

func suffix(sfx string) Handler {
	return HandlerFunc(func(req *Request, res *Response) error {
		if _, err := io.Copy(res.Data, req.Data); err != nil {
			return err
		}
		return Write(res, sfx)
	})
}

func TestNewFlow_Concurrency(t *testing.T) {
	tests := []struct {
		name    string
		cfg     []FlowConfig
		wantNil bool
		wantCap int
	}{
		{name: "default", wantNil: true},
		{name: "unlimited", cfg: []FlowConfig{{MaxConcurrent: ConcurrencyUnlimited}}, wantNil: true},
		{name: "auto", cfg: []FlowConfig{{MaxConcurrent: ConcurrencyAuto}}, wantCap: runtime.GOMAXPROCS(0) * DefaultCPUMultiplier},
		{name: "auto custom", cfg: []FlowConfig{{MaxConcurrent: ConcurrencyAuto, CPUMultiplier: 3}}, wantCap: runtime.GOMAXPROCS(0) * 3},
		{name: "fixed", cfg: []FlowConfig{{MaxConcurrent: 7}}, wantCap: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlow(tt.cfg...)
			if tt.wantNil {
				if f.sem != nil {
					t.Fatalf("sem = %d slots, want unlimited", cap(f.sem))
				}
				return
			}
			if cap(f.sem) != tt.wantCap {
				t.Errorf("sem cap = %d, want %d", cap(f.sem), tt.wantCap)
			}
		})
	}
}

func TestFlow_Run(t *testing.T) {
	tests := []struct {
		name     string
		handlers []Handler
		input    any
		want     string
	}{
		{name: "no handlers", input: "pass", want: "pass"},
		{name: "single", handlers: []Handler{upper()}, input: "abc", want: "ABC"},
		{name: "chain", handlers: []Handler{upper(), suffix("!"), suffix("?")}, input: []byte("hi"), want: "HI!?"},
		{name: "reader input", handlers: []Handler{suffix(".")}, input: strings.NewReader("x"), want: "x."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlow(FlowConfig{MaxConcurrent: 2})
			for _, h := range tt.handlers {
				f.Use(h)
			}
			var got string
			if err := f.Run(context.Background(), tt.input, &got); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Run() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlow_RunOutputs(t *testing.T) {
	f := NewFlow().Use(upper())

	var b []byte
	if err := f.Run(context.Background(), "bytes", &b); err != nil {
		t.Fatalf("Run(*[]byte) error = %v", err)
	}
	if string(b) != "BYTES" {
		t.Errorf("Run(*[]byte) = %q", b)
	}

	var buf bytes.Buffer
	if err := f.Run(context.Background(), "writer", &buf); err != nil {
		t.Fatalf("Run(io.Writer) error = %v", err)
	}
	if buf.String() != "WRITER" {
		t.Errorf("Run(io.Writer) = %q", buf.String())
	}

	if err := f.Run(context.Background(), "discard", nil); err != nil {
		t.Errorf("Run(nil) error = %v", err)
	}

	var n int
	if err := f.Run(context.Background(), "x", &n); err == nil {
		t.Error("Run(*int) expected error")
	}
	if err := f.Run(context.Background(), 42, nil); err == nil {
		t.Error("Run(int input) expected error")
	}
}

func TestFlow_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	f := NewFlow().
		Use(upper()).
		UseFunc(func(_ *Request, _ *Response) error { return boom }).
		Use(suffix("!"))

	var got string
	err := f.Run(context.Background(), strings.Repeat("a", 1<<16), &got)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
}

func TestFlow_Nested(t *testing.T) {
	inner := NewFlow().Use(upper()).Use(suffix("-in"))
	outer := NewFlow().Use(inner).Use(suffix("-out"))

	var got string
	if err := outer.Run(context.Background(), "a", &got); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "A-in-out" {
		t.Errorf("Run() = %q", got)
	}
	if outer.Len() != 2 {
		t.Errorf("Len() = %d, want 2", outer.Len())
	}
}

func TestFlow_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFlow().Use(suffix("!"))
	var got string
	if err := f.Run(ctx, "x", &got); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
