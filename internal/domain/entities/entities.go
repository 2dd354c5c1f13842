// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

// Rule is one pattern-based writing rule.
// Identity is ID. A Rule is immutable once loaded; reloads replace the whole set.
type Rule struct {
	ID          string `json:"id"`
	Pattern     string `json:"pattern"`
	IgnoreCase  bool   `json:"ignore_case"`
	Multiline   bool   `json:"multiline"`
	Suggestion  string `json:"suggestion"`            // Human-readable issue text
	Replacement string `json:"replacement,omitempty"` // Optional replacement string
	Disabled    bool   `json:"disabled,omitempty"`
}

// Match is one instance of a rule or heuristic firing at a document position.
// All offsets are code point offsets in the caller's document coordinate space.
type Match struct {
	RuleID           string `json:"rule_id"`
	Text             string `json:"text"`
	Start            int    `json:"start"`
	End              int    `json:"end"`
	ParagraphIndex   int    `json:"paragraph_index"`
	StartInParagraph int    `json:"start_in_paragraph"`
	EndInParagraph   int    `json:"end_in_paragraph"`
	SentenceStart    int    `json:"sentence_start"`
	SentenceEnd      int    `json:"sentence_end"`
	Issue            string `json:"issue"`
	Replacement      string `json:"replacement,omitempty"`
}

// Page is the offset/limit-bounded slice of the full sorted match list.
// Always derived, never stored.
type Page struct {
	Matches      []Match `json:"matches"`
	Total        int     `json:"total"`
	Offset       int     `json:"offset"`
	Limit        int     `json:"limit"`
	HasMore      bool    `json:"has_more"`
	ChunkHasMore bool    `json:"chunk_has_more"`
}

// Span is a half-open [Start, End) code point range.
type Span struct {
	Start int
	End   int
}

// Contains reports whether pos falls inside the span.
func (s Span) Contains(pos int) bool {
	return pos >= s.Start && pos < s.End
}

// Token is one annotated token produced by the NLP collaborator.
type Token struct {
	Text       string `json:"text"`
	Offset     int    `json:"idx"`        // Code point offset in the annotated text
	Lemma      string `json:"lemma"`
	POS        string `json:"pos"`        // Coarse part of speech (VERB, NOUN, ...)
	Tag        string `json:"tag"`        // Fine-grained tag (NN, NNP, VBD, ...)
	Dep        string `json:"dep"`        // Dependency label (nsubj, ROOT, ...)
	Whitespace string `json:"whitespace"` // Trailing whitespace
	IsRoot     bool   `json:"is_root"`
}

// End returns the code point offset just past the token.
func (t Token) End() int {
	return t.Offset + len([]rune(t.Text))
}

// Sentence is an ordered run of tokens with its span in the annotated text.
type Sentence struct {
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

// Span returns the sentence's code point range.
func (s Sentence) Span() Span {
	return Span{Start: s.Start, End: s.End}
}

// AnnotationView is the sentence/token/POS/dependency structure for one text.
// Consumers treat it as read-only; it is rebuilt per request.
type AnnotationView struct {
	Sentences []Sentence `json:"sentences"`
}

// SentenceSpans returns every sentence span shifted by base.
func (v *AnnotationView) SentenceSpans(base int) []Span {
	if v == nil {
		return nil
	}
	spans := make([]Span, len(v.Sentences))
	for i, s := range v.Sentences {
		spans[i] = Span{Start: base + s.Start, End: base + s.End}
	}
	return spans
}

// Document represents a source document checked from the command line.
type Document struct {
	Name    string
	Path    string
	Content string
}

// CheckRequest is one chunked annotation request.
type CheckRequest struct {
	Text       string
	ChunkIndex int
	Offset     int
	Limit      int
}

// CheckResponse is a page of matches plus the rule snapshot it was produced with.
type CheckResponse struct {
	Page
	RulesVersion string `json:"rules_version,omitempty"`
}
