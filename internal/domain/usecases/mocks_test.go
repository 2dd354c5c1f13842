package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// mockRuleSource implements ports.RuleSource for testing
type mockRuleSource struct {
	mu    sync.Mutex
	rules []entities.Rule
	err   error
	loads int
}

func (m *mockRuleSource) Name() string { return "mock" }

func (m *mockRuleSource) Load(ctx context.Context) ([]entities.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]entities.Rule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *mockRuleSource) set(rules []entities.Rule, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules, m.err = rules, err
}

func (m *mockRuleSource) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// mockAnnotator implements ports.Annotator for testing
type mockAnnotator struct {
	view  *entities.AnnotationView
	err   error
	delay time.Duration
	texts []string
}

func (m *mockAnnotator) Annotate(ctx context.Context, text string) (*entities.AnnotationView, error) {
	m.texts = append(m.texts, text)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.view, m.err
}

// alsoView annotates "She went also to the store." at offset 0.
func alsoView() *entities.AnnotationView {
	tok := func(text string, idx int, lemma, pos, dep, ws string) entities.Token {
		return entities.Token{Text: text, Offset: idx, Lemma: lemma, POS: pos, Dep: dep, Whitespace: ws, IsRoot: dep == "ROOT"}
	}
	return &entities.AnnotationView{Sentences: []entities.Sentence{{
		Start: 0, End: 27, Text: "She went also to the store.",
		Tokens: []entities.Token{
			tok("She", 0, "she", "PRON", "nsubj", " "),
			tok("went", 4, "go", "VERB", "ROOT", " "),
			tok("also", 9, "also", "ADV", "advmod", " "),
			tok("to", 14, "to", "ADP", "prep", " "),
			tok("the", 17, "the", "DET", "det", " "),
			tok("store", 21, "store", "NOUN", "pobj", ""),
			tok(".", 26, ".", "PUNCT", "punct", ""),
		},
	}}}
}

// gatedRuleSource returns results[i] on the i-th Load. The first Load blocks
// until release is closed and reports entry on entered.
type gatedRuleSource struct {
	mu      sync.Mutex
	calls   int
	results [][]entities.Rule
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRuleSource) Name() string { return "gated" }

func (g *gatedRuleSource) Load(ctx context.Context) ([]entities.Rule, error) {
	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()

	if n == 0 {
		close(g.entered)
		<-g.release
	}
	return g.results[n], nil
}
