package engine

import (
	"strings"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// ScanInput is one chunk of a document plus its placement in document coordinates.
type ScanInput struct {
	Text        string
	ChunkOffset int // Code point offset of Text within the document
	// DocumentLength bounds the fallback sentence span. Zero means ChunkOffset+len(Text).
	DocumentLength int
	// Sentences are ordered, non-overlapping sentence spans in document coordinates.
	Sentences []entities.Span
}

// ScanResult holds the raw pattern matches of one chunk.
type ScanResult struct {
	Matches []entities.Match
	// ParagraphStarts are the document offsets of each paragraph in the chunk.
	ParagraphStarts []int
	Failures        []MatchFailure
}

type paragraph struct {
	text  []rune
	start int // Offset within the chunk
}

// splitParagraphs cuts text on '\n'. Each paragraph starts one separator past the
// end of the previous one, so starts are the running sum of len(p)+1.
func splitParagraphs(text string) []paragraph {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	paras := make([]paragraph, len(parts))
	offset := 0
	for i, p := range parts {
		runes := []rune(p)
		paras[i] = paragraph{text: runes, start: offset}
		offset += len(runes) + 1
	}
	return paras
}

// sentenceSpan returns the first span containing pos, or the whole-document span.
func sentenceSpan(spans []entities.Span, pos, docLen int) entities.Span {
	for _, s := range spans {
		if s.Contains(pos) {
			return s
		}
	}
	return entities.Span{Start: 0, End: docLen}
}

// Scan applies every enabled rule to every paragraph of the chunk.
// Rules never match across a paragraph boundary. A rule that fails on a paragraph
// loses that paragraph's results only.
func Scan(in ScanInput, rules *RuleSet) ScanResult {
	paras := splitParagraphs(in.Text)
	result := ScanResult{ParagraphStarts: make([]int, len(paras))}
	for i, p := range paras {
		result.ParagraphStarts[i] = in.ChunkOffset + p.start
	}

	docLen := in.DocumentLength
	if docLen <= 0 {
		docLen = in.ChunkOffset
		for _, p := range paras {
			docLen += len(p.text) + 1
		}
		if len(paras) > 0 {
			docLen--
		}
	}

	active := rules.enabled()
	for pi, p := range paras {
		if len(p.text) == 0 {
			continue
		}
		base := in.ChunkOffset + p.start
		for _, cr := range active {
			spans, err := cr.findAll(p.text)
			if err != nil {
				result.Failures = append(result.Failures, MatchFailure{RuleID: cr.Rule.ID, Paragraph: pi, Err: err})
				continue
			}
			for _, sp := range spans {
				start := base + sp.Start
				end := base + sp.End
				sent := sentenceSpan(in.Sentences, start, docLen)
				result.Matches = append(result.Matches, entities.Match{
					RuleID:           cr.Rule.ID,
					Text:             string(p.text[sp.Start:sp.End]),
					Start:            start,
					End:              end,
					ParagraphIndex:   pi,
					StartInParagraph: sp.Start,
					EndInParagraph:   sp.End,
					SentenceStart:    sent.Start,
					SentenceEnd:      sent.End,
					Issue:            cr.Rule.Suggestion,
					Replacement:      cr.Rule.Replacement,
				})
			}
		}
	}

	return result
}
