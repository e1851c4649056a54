package hybrid

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

// Rendering strings. The context is read by the answer model, not shown.
const (
	NoDocuments = "Không tìm thấy tài liệu liên quan."

	contextHeader = "Các nguồn tham khảo (sắp xếp theo độ liên quan cao nhất):\n\n"
	untitled      = "Không có tiêu đề"
	noLink        = "Không có link"
	separator     = "------------------------------------------------------------\n"
)

// DefaultMaxContextChars is the default rendering budget.
const DefaultMaxContextChars = 15000

// Render formats docs best first as numbered sources under a header. The
// output, header included, never exceeds maxChars runes and never contains
// part of a passage: rendering stops at the first passage that would not fit.
// An empty list renders NoDocuments.
func Render(docs []retrieval.Document, maxChars int) string {
	if len(docs) == 0 {
		return NoDocuments
	}

	headerLen := utf8.RuneCountInString(contextHeader)
	if headerLen > maxChars {
		if utf8.RuneCountInString(NoDocuments) <= maxChars {
			return NoDocuments
		}
		return ""
	}

	sorted := make([]retrieval.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var b strings.Builder
	b.WriteString(contextHeader)
	used := headerLen

	for i, doc := range sorted {
		segment := formatSegment(i+1, doc)
		n := utf8.RuneCountInString(segment)
		if used+n > maxChars {
			break
		}
		b.WriteString(segment)
		used += n
	}
	return b.String()
}

func formatSegment(index int, doc retrieval.Document) string {
	title := doc.Title()
	if title == "" {
		title = untitled
	}
	url := doc.URL()
	if url == "" {
		url = noLink
	}
	return fmt.Sprintf("[%d] %s - %s (Score: %.4f)\n%s\n%s",
		index, title, url, doc.Score, strings.TrimSpace(doc.Content), separator)
}
