// Package guard implements the safety gate: ordered, short-circuiting checks
// that decide whether a user question may enter the answer pipeline.
//
// Checks run cheapest first. Normalization, language and length come first,
// then the keyword blocklist, then the model-judged classifiers in a fixed
// order. The first failing check determines the verdict.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/calque-ai/medrag/pkg/calque"
)

// Check names reported in Verdict.Check.
const (
	CheckEmpty     = "empty"
	CheckLanguage  = "language"
	CheckLength    = "length"
	CheckBlocklist = "blocklist"
)

// User-facing rejection reasons.
const (
	ReasonEmpty     = "Nội dung rỗng"
	ReasonLanguage  = "Nội dung vi phạm ngôn ngữ (chỉ hỗ trợ tiếng Việt)"
	ReasonLength    = "Nội dung vượt quá giới hạn ký tự"
	ReasonBlocklist = "Nội dung chứa các từ nhạy cảm hoặc bị cấm"
)

// ErrClassifier wraps a classifier call failure.
var ErrClassifier = errors.New("guard: classifier failed")

// Verdict is the gate's decision. Reason and Check are set when Allowed is false.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Check   string `json:"check,omitempty"`
}

func allow() Verdict { return Verdict{Allowed: true} }

func deny(check, reason string) Verdict {
	return Verdict{Allowed: false, Reason: reason, Check: check}
}

// Config holds the deterministic check limits.
type Config struct {
	// Language is the single accepted ISO 639-1 code.
	Language string
	// MinConfidence is the minimum detector confidence for Language.
	MinConfidence float64
	// MaxChars caps the normalized input length in runes.
	MaxChars int
}

// DefaultConfig accepts Vietnamese up to 4000 characters.
func DefaultConfig() Config {
	return Config{Language: "vi", MinConfidence: 0.80, MaxChars: 4000}
}

// Gate runs the checks. It is safe for concurrent use.
type Gate struct {
	cfg         Config
	detector    LanguageDetector
	blocklist   *Blocklist
	classifiers []Classifier
	parallel    bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithDetector replaces the language detector.
func WithDetector(d LanguageDetector) Option {
	return func(g *Gate) { g.detector = d }
}

// WithBlocklist sets the keyword blocklist.
func WithBlocklist(b *Blocklist) Option {
	return func(g *Gate) { g.blocklist = b }
}

// WithClassifiers sets the model-judged checks, run in the given order.
func WithClassifiers(cs ...Classifier) Option {
	return func(g *Gate) { g.classifiers = cs }
}

// WithParallelClassifiers runs classifiers concurrently. The reported
// failure is still the first in configured order.
func WithParallelClassifiers() Option {
	return func(g *Gate) { g.parallel = true }
}

// New creates a gate. Without options it uses the lingua detector, an
// empty blocklist and no classifiers.
func New(cfg Config, opts ...Option) *Gate {
	g := &Gate{cfg: cfg, detector: NewLanguageDetector()}
	for _, opt := range opts {
		opt(g)
	}
	if g.blocklist == nil {
		g.blocklist = NewBlocklist(nil)
	}
	return g
}

// Normalize trims text and converts it to Unicode NFC.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Check runs every check in order and returns the first failure. An error
// means a classifier could not be consulted; the verdict is then unusable.
func (g *Gate) Check(ctx context.Context, text string) (Verdict, error) {
	normalized := Normalize(text)

	if v := g.checkLanguageAndLength(normalized); !v.Allowed {
		return v, nil
	}

	if kw, ok := g.blocklist.Match(normalized); ok {
		calque.LogDebug(ctx, "blocked keyword matched", "keyword", kw)
		return deny(CheckBlocklist, ReasonBlocklist), nil
	}

	if g.parallel {
		return g.classifyParallel(ctx, normalized)
	}
	return g.classifySequential(ctx, normalized)
}

func (g *Gate) checkLanguageAndLength(text string) Verdict {
	if text == "" {
		return deny(CheckEmpty, ReasonEmpty)
	}

	if g.cfg.Language != "" && g.detector != nil {
		label, confidence := g.detector.Detect(text)
		if !strings.EqualFold(label, g.cfg.Language) || confidence < g.cfg.MinConfidence {
			return deny(CheckLanguage, ReasonLanguage)
		}
	}

	if g.cfg.MaxChars > 0 && utf8.RuneCountInString(text) > g.cfg.MaxChars {
		return deny(CheckLength, ReasonLength)
	}
	return allow()
}

func (g *Gate) classifySequential(ctx context.Context, text string) (Verdict, error) {
	for _, c := range g.classifiers {
		flagged, err := c.Classify(ctx, text)
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: %s: %w", ErrClassifier, c.Name(), err)
		}
		if flagged {
			return deny(c.Name(), c.Reason()), nil
		}
	}
	return allow(), nil
}

func (g *Gate) classifyParallel(ctx context.Context, text string) (Verdict, error) {
	type outcome struct {
		flagged bool
		err     error
	}
	results := make([]outcome, len(g.classifiers))

	var wg sync.WaitGroup
	for i, c := range g.classifiers {
		wg.Add(1)
		go func(i int, c Classifier) {
			defer wg.Done()
			flagged, err := c.Classify(ctx, text)
			results[i] = outcome{flagged: flagged, err: err}
		}(i, c)
	}
	wg.Wait()

	for i, r := range results {
		c := g.classifiers[i]
		if r.err != nil {
			return Verdict{}, fmt.Errorf("%w: %s: %w", ErrClassifier, c.Name(), r.err)
		}
		if r.flagged {
			return deny(c.Name(), c.Reason()), nil
		}
	}
	return allow(), nil
}
