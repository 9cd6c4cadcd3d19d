package translate

import (
	"github.com/abadojack/whatlanggo"
)

// Detector guesses the language of a text
type Detector interface {
	// Detect returns an ISO 639-1 code and a confidence in [0, 1]. ok is
	// false when the text gives nothing to go on.
	Detect(text string) (code string, confidence float64, ok bool)
}

// NgramDetector is a local trigram based detector
type NgramDetector struct{}

// Detect implements Detector
func (NgramDetector) Detect(text string) (string, float64, bool) {
	info := whatlanggo.Detect(text)
	if info.Lang < 0 {
		return "", 0, false
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", 0, false
	}
	return code, info.Confidence, true
}
