// Package text provides string-level flow handlers.
package text

import (
	"io"
	"regexp"
	"strings"

	"github.com/calque-ai/medrag/pkg/calque"
)

// Transform buffers the whole input and writes fn's result.
func Transform(fn func(string) string) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		input, err := io.ReadAll(req.Data)
		if err != nil {
			return err
		}
		_, err = io.WriteString(res.Data, fn(string(input)))
		return err
	})
}

// StripTagged removes every <tag>...</tag> block, including unterminated
// trailing ones, then trims surrounding space.
func StripTagged(tag string) func(string) string {
	q := regexp.QuoteMeta(tag)
	block := regexp.MustCompile(`(?s)<` + q + `>.*?(</` + q + `>|$)`)
	return func(s string) string {
		return strings.TrimSpace(block.ReplaceAllString(s, ""))
	}
}
