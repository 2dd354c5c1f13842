package engine

import (
	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// Request is everything one engine call needs. Rules and View are read-only.
type Request struct {
	Text           string
	ChunkOffset    int
	DocumentLength int
	ChunkHasMore   bool
	Rules          *RuleSet
	View           *entities.AnnotationView // nil runs pattern rules only
	Offset         int
	Limit          int
}

// Result is a page plus the per-rule failures met while producing it.
type Result struct {
	Page     entities.Page
	Failures []MatchFailure
}

// Engine runs pattern rules and heuristic detectors and pages the results.
type Engine struct {
	detectors []Detector
	defaults  Defaults
}

// New creates an Engine with the built-in detectors.
func New(defaults Defaults) *Engine {
	return NewWithDetectors(defaults, DefaultDetectors())
}

// NewWithDetectors creates an Engine with a custom detector list.
func NewWithDetectors(defaults Defaults, detectors []Detector) *Engine {
	if defaults.Limit <= 0 {
		defaults.Limit = DefaultLimit
	}
	return &Engine{detectors: detectors, defaults: defaults}
}

// Annotate always returns a valid page, empty at worst.
func (e *Engine) Annotate(req Request) Result {
	scan := Scan(ScanInput{
		Text:           req.Text,
		ChunkOffset:    req.ChunkOffset,
		DocumentLength: req.DocumentLength,
		Sentences:      req.View.SentenceSpans(req.ChunkOffset),
	}, req.Rules)

	heuristic := RunDetectors(req.View, e.detectors, req.ChunkOffset)

	w := NormalizeWindow(req.Offset, req.Limit, e.defaults)
	chunkHasMore := req.ChunkHasMore && req.Text != ""
	return Result{
		Page:     Assemble(scan.Matches, heuristic, scan.ParagraphStarts, w, chunkHasMore),
		Failures: scan.Failures,
	}
}
