package rewrite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/calque-ai/medrag/pkg/middleware/ai"
)

var fluHistory = []Turn{
	{Role: RoleUser, Content: "Triệu chứng của cảm cúm?"},
	{Role: RoleAssistant, Content: "Cảm cúm thường gây sốt, ho, đau họng và mệt mỏi."},
}

func TestRewrite_EmptyHistory(t *testing.T) {
	client := ai.NewMockClient("không được gọi")
	rw := New(client, DefaultConfig())

	got := rw.Rewrite(context.Background(), "Đau đầu nên làm gì?", nil)
	if got != "Đau đầu nên làm gì?" {
		t.Errorf("Rewrite() = %q", got)
	}
	if client.CallCount() != 0 {
		t.Errorf("completion calls = %d, want 0", client.CallCount())
	}
}

func TestRewrite_ResolvesReference(t *testing.T) {
	client := ai.NewMockClientFunc(func(msgs []ai.Message) (string, error) {
		for _, m := range msgs[1:] {
			if strings.Contains(m.Content, "cảm cúm") {
				return "Cách chữa bệnh cảm cúm là gì?", nil
			}
		}
		return "Cách chữa bệnh này?", nil
	})
	rw := New(client, DefaultConfig())

	got := rw.Rewrite(context.Background(), "Cách chữa bệnh này?", fluHistory)
	if !strings.Contains(got, "cảm cúm") || strings.Contains(got, "bệnh này") {
		t.Errorf("Rewrite() = %q, want the condition named", got)
	}
}

func TestRewrite_Messages(t *testing.T) {
	client := ai.NewMockClient("Cách chữa bệnh cảm cúm là gì?")
	cfg := DefaultConfig()
	cfg.Model = "small"
	cfg.MaxTurnChars = 10
	rw := New(client, cfg)

	history := append([]Turn{{Role: "system", Content: "lạ"}}, fluHistory...)
	rw.Rewrite(context.Background(), "Cách chữa bệnh này?", history)

	calls := client.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	msgs := calls[0].Messages
	wantRoles := []ai.Role{ai.RoleSystem, ai.RoleUser, ai.RoleUser, ai.RoleAssistant, ai.RoleUser}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("messages = %d, want %d", len(msgs), len(wantRoles))
	}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Errorf("message %d role = %s, want %s", i, msgs[i].Role, role)
		}
	}
	if got := msgs[3].Content; got != "Cảm cúm th" {
		t.Errorf("history not truncated: %q", got)
	}
	if msgs[4].Content != "Cách chữa bệnh này?" {
		t.Errorf("last message = %q", msgs[4].Content)
	}

	opts := calls[0].Options
	if opts.Model != "small" || opts.Temperature == nil || *opts.Temperature != 0.1 || opts.MaxTokens == nil || *opts.MaxTokens != 400 {
		t.Errorf("options = %+v", opts)
	}
}

func TestRewrite_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		client *ai.MockClient
	}{
		{"call error", ai.NewMockClientWithError(errors.New("quota"))},
		{"empty", ai.NewMockClient("   ")},
		{"too short", ai.NewMockClient("Sốt?")},
		{"answers instead", ai.NewMockClient("Bạn nên nghỉ ngơi và uống nhiều nước.")},
		{"first person", ai.NewMockClient("Tôi nghĩ bạn bị cảm cúm.")},
		{"greeting", ai.NewMockClient("Chào bạn, cảm cúm chữa thế nào?")},
		{"apology", ai.NewMockClient("Rất xin lỗi, tôi không thể giúp.")},
		{"self reference", ai.NewMockClient("Mình là trợ lý y tế ảo.")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := New(tt.client, DefaultConfig())
			got := rw.Rewrite(context.Background(), "Cách chữa bệnh này?", fluHistory)
			if got != "Cách chữa bệnh này?" {
				t.Errorf("Rewrite() = %q, want original", got)
			}
		})
	}
}

func TestRewrite_CleansDecoration(t *testing.T) {
	rw := New(ai.NewMockClient(`Câu hỏi: "Cách chữa bệnh cảm cúm tại nhà là gì?"`), DefaultConfig())
	got := rw.Rewrite(context.Background(), "Chữa tại nhà được không?", fluHistory)
	if got != "Cách chữa bệnh cảm cúm tại nhà là gì?" {
		t.Errorf("Rewrite() = %q", got)
	}
}

func TestPolicy_Configurable(t *testing.T) {
	p := Policy{MinLength: 1, RejectPhrases: []string{"as an ai"}}
	if p.Accepts("As an AI, I cannot") {
		t.Error("custom phrase not rejected")
	}
	if !p.Accepts("Tôi bị sốt phải làm sao?") {
		t.Error("prefix rejected without a prefix rule")
	}
	if (Policy{}).Accepts("") {
		t.Error("empty output accepted")
	}
}
