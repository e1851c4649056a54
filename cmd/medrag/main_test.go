package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/calque-ai/medrag/pkg/app"
	"github.com/calque-ai/medrag/pkg/config"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
	"github.com/calque-ai/medrag/pkg/rag"
	"github.com/calque-ai/medrag/pkg/rag/guard"
)

func testApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.APIKey = "test-key"
	cfg.Guard.BlocklistFile = ""
	cfg.Telemetry.Metrics = false

	llm := ai.NewMockClientFunc(func(msgs []ai.Message) (string, error) {
		if strings.Contains(msgs[0].Content, "'Có' hoặc 'Không'") {
			return "Không", nil
		}
		return "Uống đủ nước khi sốt [1].", nil
	})
	docs := retrieval.RetrieverFunc(func(context.Context, string, int) ([]retrieval.Document, error) {
		return []retrieval.Document{{ID: "1", Content: "Sốt cần bù nước."}}, nil
	})

	a, err := app.Build(context.Background(), cfg,
		app.WithLogOutput(&bytes.Buffer{}),
		app.WithLLM(llm),
		app.WithEmbedder(ai.NewMockEmbedder(nil)),
		app.WithRetrievers(docs, docs),
		app.WithLanguageDetector(guard.LanguageDetectorFunc(func(string) (string, float64) { return "vi", 0.99 })),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestChatLoop(t *testing.T) {
	a := testApp(t)
	in := strings.NewReader("Sốt nên làm gì?\n\nreset\nexit\nkhông tới đây\n")
	var out bytes.Buffer

	if err := chatLoop(context.Background(), a, in, &out); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	if strings.Count(got, rag.Welcome) != 2 {
		t.Errorf("welcome shown %d times, want 2 (start and reset)", strings.Count(got, rag.Welcome))
	}
	if strings.Count(got, "Uống đủ nước khi sốt") != 1 {
		t.Errorf("output = %q", got)
	}
	sessions, err := a.History.Sessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions after reset = %v, want none", sessions)
	}
}

func TestChatLoop_EOF(t *testing.T) {
	a := testApp(t)
	var out bytes.Buffer
	if err := chatLoop(context.Background(), a, strings.NewReader("Sốt nên làm gì?"), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Uống đủ nước khi sốt") {
		t.Errorf("unterminated last line not answered: %q", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "medrag "+app.Version+"\n" {
		t.Errorf("version output = %q", got)
	}
}
