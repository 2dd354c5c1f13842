package engine

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// AdverbRuleID identifies misplaced-adverb matches.
const AdverbRuleID = "17"

// AdverbDetector flags "also" placed after the main verb and suggests moving it
// in front of the verb.
type AdverbDetector struct{}

func (AdverbDetector) ID() string { return AdverbRuleID }

// Detect emits one match per "also" token after a sentence's non-"be" root verb.
func (AdverbDetector) Detect(view *entities.AnnotationView) []entities.Match {
	if view == nil {
		return nil
	}
	var out []entities.Match
	for _, s := range view.Sentences {
		root := rootVerb(s.Tokens)
		if root < 0 {
			continue
		}
		text := sentenceText(s)
		for i := root + 1; i < len(s.Tokens); i++ {
			tok := s.Tokens[i]
			if !strings.EqualFold(tok.Text, "also") {
				continue
			}
			suggestion := moveBefore(s.Tokens, i, root)
			out = append(out, entities.Match{
				RuleID:        AdverbRuleID,
				Text:          text,
				Start:         tok.Offset,
				End:           tok.End(),
				SentenceStart: s.Start,
				SentenceEnd:   s.End,
				Issue:         fmt.Sprintf("Consider placing %q before %q: %s", tok.Text, s.Tokens[root].Text, suggestion),
			})
		}
	}
	return out
}

// rootVerb returns the index of the sentence root when it is a verb other than
// a form of "to be", or -1.
func rootVerb(tokens []entities.Token) int {
	for i, t := range tokens {
		if !t.IsRoot && t.Dep != "ROOT" {
			continue
		}
		if t.POS != "VERB" && t.POS != "AUX" {
			return -1
		}
		if strings.EqualFold(t.Lemma, "be") {
			return -1
		}
		return i
	}
	return -1
}

// moveBefore renders tokens with tokens[from] moved to just before tokens[to].
// The token left in front of the gap takes over the moved token's whitespace and
// the moved token is followed by a single space.
func moveBefore(tokens []entities.Token, from, to int) string {
	ws := make([]string, len(tokens))
	for i, t := range tokens {
		ws[i] = t.Whitespace
	}
	if from > 0 {
		ws[from-1] = tokens[from].Whitespace
	}
	ws[from] = " "

	order := make([]int, 0, len(tokens))
	for i := range tokens {
		if i == to {
			order = append(order, from)
		}
		if i == from {
			continue
		}
		order = append(order, i)
	}

	var sb strings.Builder
	for _, i := range order {
		sb.WriteString(tokens[i].Text)
		sb.WriteString(ws[i])
	}
	return strings.TrimRight(sb.String(), " \t\r\n")
}
