package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpan_Contains(t *testing.T) {
	s := Span{Start: 4, End: 10}

	assert.False(t, s.Contains(3))
	assert.True(t, s.Contains(4))
	assert.True(t, s.Contains(9))
	assert.False(t, s.Contains(10), "end is exclusive")
}

func TestToken_EndCountsCodePoints(t *testing.T) {
	tok := Token{Text: "café", Offset: 2}
	assert.Equal(t, 6, tok.End())
}

func TestAnnotationView_SentenceSpans(t *testing.T) {
	view := &AnnotationView{Sentences: []Sentence{
		{Start: 0, End: 12},
		{Start: 13, End: 30},
	}}

	spans := view.SentenceSpans(100)
	assert.Equal(t, []Span{{Start: 100, End: 112}, {Start: 113, End: 130}}, spans)
}

func TestAnnotationView_NilHasNoSpans(t *testing.T) {
	var view *AnnotationView
	assert.Nil(t, view.SentenceSpans(0))
}
