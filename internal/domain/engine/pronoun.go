package engine

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// PronounRuleID identifies pronoun-antecedent matches.
const PronounRuleID = "35"

// organizationNouns are lemmas that take a singular pronoun.
var organizationNouns = map[string]struct{}{
	"company":      {},
	"business":     {},
	"organisation": {},
	"organization": {},
	"agency":       {},
	"firm":         {},
}

// PronounDetector flags "they" used as the subject right after a sentence that
// names a singular organization.
type PronounDetector struct{}

func (PronounDetector) ID() string { return PronounRuleID }

// Detect emits at most one match per sentence: the first subject "they" whose
// preceding sentence holds an organization noun.
func (PronounDetector) Detect(view *entities.AnnotationView) []entities.Match {
	if view == nil {
		return nil
	}
	var out []entities.Match
	for i := 1; i < len(view.Sentences); i++ {
		s := view.Sentences[i]
		if !hasOrganizationNoun(view.Sentences[i-1].Tokens) {
			continue
		}
		for _, tok := range s.Tokens {
			if !strings.EqualFold(tok.Text, "they") || !isSubject(tok.Dep) {
				continue
			}
			text := sentenceText(s)
			replacement := "It"
			if tok.Text[0] == 't' {
				replacement = "it"
			}
			suggestion := strings.Replace(text, tok.Text, replacement, 1)
			out = append(out, entities.Match{
				RuleID:        PronounRuleID,
				Text:          text,
				Start:         tok.Offset,
				End:           tok.End(),
				SentenceStart: s.Start,
				SentenceEnd:   s.End,
				Replacement:   replacement,
				Issue:         fmt.Sprintf("An organization is singular; consider %q instead of %q: %s", "it", tok.Text, suggestion),
			})
			break
		}
	}
	return out
}

func isSubject(dep string) bool {
	return dep == "nsubj" || dep == "nsubjpass"
}

func hasOrganizationNoun(tokens []entities.Token) bool {
	for _, t := range tokens {
		if t.POS != "NOUN" && t.POS != "PROPN" {
			continue
		}
		if !isSingular(t) {
			continue
		}
		if _, ok := organizationNouns[strings.ToLower(t.Lemma)]; ok {
			return true
		}
	}
	return false
}

// isSingular uses the fine-grained tag when present and otherwise treats a token
// spelled like its lemma as singular.
func isSingular(t entities.Token) bool {
	if t.Tag != "" {
		return t.Tag == "NN" || t.Tag == "NNP"
	}
	return strings.EqualFold(t.Text, t.Lemma)
}
