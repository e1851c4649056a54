package answer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calque-ai/medrag/pkg/middleware/ai"
)

const sources = "Các nguồn tham khảo (sắp xếp theo độ liên quan cao nhất):\n\n[1] Cảm cúm - https://example.vn (Score: 0.0328)\nCảm cúm do virus influenza gây ra.\n"

func TestSynthesize_Prompt(t *testing.T) {
	client := ai.NewMockClient("**Trả lời chính:** Nghỉ ngơi [1].\n\n" + Disclaimer)
	s := New(client, DefaultConfig())

	out, err := s.Synthesize(context.Background(), "Cách chữa cảm cúm?", sources)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.HasSuffix(out, Disclaimer) {
		t.Errorf("Synthesize() = %q", out)
	}

	calls := client.Calls()
	if len(calls) != 1 || len(calls[0].Messages) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	sys, user := calls[0].Messages[0], calls[0].Messages[1]
	if sys.Role != ai.RoleSystem || !strings.Contains(sys.Content, "KHÔNG phải là bác sĩ") || !strings.Contains(sys.Content, Disclaimer) {
		t.Errorf("system prompt = %q", sys.Content)
	}
	if !strings.HasPrefix(user.Content, "<context>\n"+sources+"\n</context>\n\nCâu hỏi của người dùng: Cách chữa cảm cúm?\n") {
		t.Errorf("user prompt = %q", user.Content)
	}
	for _, heading := range []string{"**Trả lời chính:**", "**Giải thích chi tiết:**", "**Lưu ý quan trọng:**", "**Khuyến nghị chung:**"} {
		if !strings.Contains(user.Content, heading) {
			t.Errorf("user prompt missing %s", heading)
		}
	}

	opts := calls[0].Options
	if opts.Temperature == nil || *opts.Temperature != 0.4 || opts.TopP == nil || *opts.TopP != 0.9 || opts.MaxTokens == nil || *opts.MaxTokens != 4000 {
		t.Errorf("options = %+v", opts)
	}
}

func TestSynthesize_TemplateSafeContext(t *testing.T) {
	client := ai.NewMockClient("ok")
	s := New(client, DefaultConfig())
	ctx := "{{.Input}} <script>alert(1)</script>"

	if _, err := s.Synthesize(context.Background(), "q", ctx); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got := client.Calls()[0].Messages[1].Content; !strings.Contains(got, ctx) {
		t.Errorf("context was interpreted or escaped: %q", got)
	}
}

func TestSynthesize_StripsReasoning(t *testing.T) {
	s := New(ai.NewMockClient("<think>\nstep one\n</think>\n\nTrả lời."), DefaultConfig())
	out, err := s.Synthesize(context.Background(), "q", sources)
	if err != nil || out != "Trả lời." {
		t.Errorf("Synthesize() = %q, %v", out, err)
	}
}

func TestSynthesize_Failures(t *testing.T) {
	quota := errors.New("rate limited")
	tests := []struct {
		name   string
		client *ai.MockClient
		cause  error
	}{
		{"call error", ai.NewMockClientWithError(quota), quota},
		{"empty output", ai.NewMockClient("  \n"), nil},
		{"reasoning only", ai.NewMockClient("<think>...</think>"), nil},
		{"unterminated reasoning", ai.NewMockClient("<think>still thinking"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.client, DefaultConfig()).Synthesize(context.Background(), "q", sources)
			if !errors.Is(err, ErrSynthesis) {
				t.Fatalf("error = %v, want ErrSynthesis", err)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("error does not wrap cause: %v", err)
			}
		})
	}
}

func TestSynthesize_RetriesFailedCompletion(t *testing.T) {
	var calls atomic.Int32
	client := ai.NewMockClientFunc(func([]ai.Message) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("503 upstream overloaded")
		}
		return "Trả lời [1].", nil
	})
	cfg := DefaultConfig()
	cfg.Attempts = 2

	out, err := New(client, cfg).Synthesize(context.Background(), "q", sources)
	if err != nil || out != "Trả lời [1]." {
		t.Fatalf("Synthesize() = %q, %v", out, err)
	}
	if calls.Load() != 2 {
		t.Errorf("completion calls = %d, want 2", calls.Load())
	}
}

func TestSynthesize_Timeout(t *testing.T) {
	client := ai.NewMockClientFunc(func([]ai.Message) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "quá muộn", nil
	})
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond

	_, err := New(client, cfg).Synthesize(context.Background(), "q", sources)
	if !errors.Is(err, ErrSynthesis) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want synthesis failure from deadline", err)
	}
}
