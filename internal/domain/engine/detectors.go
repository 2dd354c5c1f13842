package engine

import (
	"strings"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// Detector is a structural check over an annotation view.
// Detect must be a pure function of the view. Returned offsets are relative to
// the annotated text.
type Detector interface {
	ID() string
	Detect(view *entities.AnnotationView) []entities.Match
}

// DefaultDetectors returns the built-in heuristic detectors.
func DefaultDetectors() []Detector {
	return []Detector{AdverbDetector{}, PronounDetector{}}
}

// RunDetectors runs each detector over view and shifts results into document
// coordinates by base. A nil view yields no matches.
func RunDetectors(view *entities.AnnotationView, detectors []Detector, base int) []entities.Match {
	if view == nil {
		return nil
	}
	var out []entities.Match
	for _, d := range detectors {
		for _, m := range d.Detect(view) {
			m.Start += base
			m.End += base
			m.SentenceStart += base
			m.SentenceEnd += base
			out = append(out, m)
		}
	}
	return out
}

// sentenceText prefers the collaborator's sentence text and falls back to
// re-rendering tokens with their trailing whitespace.
func sentenceText(s entities.Sentence) string {
	if s.Text != "" {
		return s.Text
	}
	var sb strings.Builder
	for _, t := range s.Tokens {
		sb.WriteString(t.Text)
		sb.WriteString(t.Whitespace)
	}
	return strings.TrimRight(sb.String(), " \t\r\n")
}
