package guard

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LanguageDetector identifies the language of a text.
type LanguageDetector interface {
	// Detect returns an ISO 639-1 code and a confidence in [0, 1].
	Detect(text string) (label string, confidence float64)
}

// LanguageDetectorFunc adapts a function to LanguageDetector.
type LanguageDetectorFunc func(text string) (string, float64)

// Detect calls f.
func (f LanguageDetectorFunc) Detect(text string) (string, float64) { return f(text) }

// DetectorLanguages are the candidates the default detector chooses between.
// Confidences are relative to this set.
var DetectorLanguages = []lingua.Language{
	lingua.Vietnamese,
	lingua.English,
	lingua.French,
	lingua.Spanish,
	lingua.German,
	lingua.Indonesian,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Thai,
}

type linguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLanguageDetector returns a lingua detector over DetectorLanguages.
// Models load lazily on first use.
func NewLanguageDetector() LanguageDetector {
	return linguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(DetectorLanguages...).
			Build(),
	}
}

func (d linguaDetector) Detect(text string) (string, float64) {
	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 || values[0].Value() == 0 {
		return "", 0
	}
	return strings.ToLower(values[0].Language().IsoCode639_1().String()), values[0].Value()
}
