package guard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Blocklist matches any of a fixed set of keywords anywhere in a text,
// ignoring case. Matching is a single Aho-Corasick pass.
type Blocklist struct {
	keywords []string
	matcher  *ahocorasick.Matcher
}

// NewBlocklist builds a matcher over keywords. Blank entries are dropped.
func NewBlocklist(keywords []string) *Blocklist {
	var cleaned []string
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = fold(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		cleaned = append(cleaned, kw)
	}

	b := &Blocklist{keywords: cleaned}
	if len(cleaned) > 0 {
		b.matcher = ahocorasick.NewStringMatcher(cleaned)
	}
	return b
}

// LoadBlocklist reads one keyword per line. Blank lines and lines starting
// with # or // are ignored.
func LoadBlocklist(r io.Reader) (*Blocklist, error) {
	var keywords []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read blocklist: %w", err)
	}
	return NewBlocklist(keywords), nil
}

// LoadBlocklistFile is LoadBlocklist for a file path.
func LoadBlocklistFile(path string) (*Blocklist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadBlocklist(f)
}

// Len returns the number of distinct keywords.
func (b *Blocklist) Len() int { return len(b.keywords) }

// Match reports the first keyword found in text.
func (b *Blocklist) Match(text string) (string, bool) {
	if b == nil || b.matcher == nil {
		return "", false
	}
	hits := b.matcher.MatchThreadSafe([]byte(fold(text)))
	if len(hits) == 0 {
		return "", false
	}
	return b.keywords[hits[0]], true
}

// fold lowercases with Vietnamese rules after NFC normalization so keyword
// and text bytes line up. A Caser is stateful, so one is made per call.
func fold(s string) string {
	return cases.Lower(language.Vietnamese).String(norm.NFC.String(s))
}
