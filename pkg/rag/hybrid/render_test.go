package hybrid

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

func TestRender_Empty(t *testing.T) {
	if got := Render(nil, 15000); got != NoDocuments {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestRender_Format(t *testing.T) {
	docs := []retrieval.Document{
		{Content: "  Đoạn B  ", Score: 0.2},
		{Content: "Đoạn A", Score: 0.8, Metadata: map[string]any{"title": "Cảm cúm", "url": "https://vinmec.com/cam-cum"}},
	}
	got := Render(docs, 15000)

	want := "Các nguồn tham khảo (sắp xếp theo độ liên quan cao nhất):\n\n" +
		"[1] Cảm cúm - https://vinmec.com/cam-cum (Score: 0.8000)\nĐoạn A\n" + strings.Repeat("-", 60) + "\n" +
		"[2] Không có tiêu đề - Không có link (Score: 0.2000)\nĐoạn B\n" + strings.Repeat("-", 60) + "\n"
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRender_SourceURLFallback(t *testing.T) {
	docs := []retrieval.Document{{Content: "x", Score: 1, Metadata: map[string]any{"source_url": "https://moh.gov.vn"}}}
	if got := Render(docs, 15000); !strings.Contains(got, "- https://moh.gov.vn (Score") {
		t.Errorf("Render() = %q", got)
	}
}

func TestRender_Budget(t *testing.T) {
	var docs []retrieval.Document
	for i := 0; i < 30; i++ {
		docs = append(docs, retrieval.Document{
			ID:      fmt.Sprint(i),
			Content: strings.Repeat("ỗ", 50+i*7),
			Score:   float64(100 - i),
		})
	}

	for _, budget := range []int{0, 10, 60, 61, 200, 500, 1234, 5000, 100000} {
		out := Render(docs, budget)
		if n := utf8.RuneCountInString(out); n > budget {
			t.Fatalf("budget %d: rendered %d runes", budget, n)
		}
		if out == "" || out == NoDocuments {
			continue
		}
		// Every rendered passage is whole: each opening tag has its closing rule.
		if opened, closed := strings.Count(out, "(Score: "), strings.Count(out, strings.Repeat("-", 60)+"\n"); opened != closed {
			t.Errorf("budget %d: %d passages but %d separators", budget, opened, closed)
		}
		for i := 0; i < strings.Count(out, "(Score: "); i++ {
			if !strings.Contains(out, "\n"+docs[i].Content+"\n") {
				t.Errorf("budget %d: passage %d split or missing", budget, i)
			}
		}
	}
}

func TestRender_StopsAtFirstOverflow(t *testing.T) {
	docs := []retrieval.Document{
		{Content: strings.Repeat("a", 10), Score: 3},
		{Content: strings.Repeat("b", 500), Score: 2},
		{Content: "c", Score: 1},
	}
	out := Render(docs, 300)
	if strings.Contains(out, "\nc\n") {
		t.Error("rendering continued past a passage that did not fit")
	}
	if !strings.Contains(out, "[1]") {
		t.Error("first passage missing")
	}
}
