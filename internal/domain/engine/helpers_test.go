package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// ann describes one token for the sentence fixture builder.
type ann struct {
	text, lemma, pos, tag, dep string
	root                       bool
}

func root(text, lemma, pos string) ann {
	return ann{text: text, lemma: lemma, pos: pos, dep: "ROOT", root: true}
}

func word(text, lemma, pos, tag, dep string) ann {
	return ann{text: text, lemma: lemma, pos: pos, tag: tag, dep: dep}
}

func plain(text string) ann {
	return ann{text: text, lemma: strings.ToLower(text), pos: "X", dep: "dep"}
}

// sentence builds an annotated sentence starting at base, locating each token in
// text in order and deriving trailing whitespace from the gaps.
func sentence(base int, text string, anns ...ann) entities.Sentence {
	toks := make([]entities.Token, len(anns))
	cursor := 0
	for i, a := range anns {
		b := strings.Index(text[cursor:], a.text)
		if b < 0 {
			panic("token " + a.text + " not in " + text)
		}
		byteStart := cursor + b
		toks[i] = entities.Token{
			Text:   a.text,
			Offset: base + utf8.RuneCountInString(text[:byteStart]),
			Lemma:  a.lemma,
			POS:    a.pos,
			Tag:    a.tag,
			Dep:    a.dep,
			IsRoot: a.root,
		}
		cursor = byteStart + len(a.text)
	}

	runes := []rune(text)
	for i := range toks {
		end := toks[i].End() - base
		next := len(runes)
		if i+1 < len(toks) {
			next = toks[i+1].Offset - base
		}
		toks[i].Whitespace = string(runes[end:next])
	}
	return entities.Sentence{Start: base, End: base + len(runes), Text: text, Tokens: toks}
}

// wentAlso is "She went also to the store." at base.
func wentAlso(base int) entities.Sentence {
	return sentence(base, "She went also to the store.",
		word("She", "she", "PRON", "PRP", "nsubj"),
		root("went", "go", "VERB"),
		word("also", "also", "ADV", "RB", "advmod"),
		plain("to"), plain("the"),
		word("store", "store", "NOUN", "NN", "pobj"),
		plain("."),
	)
}

func mustRuleSet(rules ...entities.Rule) *RuleSet {
	rs := CompileAll(rules, CompileOptions{})
	if len(rs.Failures()) > 0 {
		panic(rs.Failures()[0])
	}
	return rs
}
