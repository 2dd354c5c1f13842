// Package usecases - annotate.go runs one chunked check request through the engine.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/0xcro3dile/writecheck-go/internal/domain/engine"
	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/domain/ports"
	"github.com/0xcro3dile/writecheck-go/internal/logging"
)

// ErrInputTooLarge is returned for documents above the configured size.
var ErrInputTooLarge = errors.New("input exceeds the maximum document size")

// AnnotateConfig holds the limits of the annotate use case.
type AnnotateConfig struct {
	ChunkSize        int // Code points per chunk
	MaxDocumentChars int // Zero means unlimited
	AnnotatorTimeout time.Duration
	Paging           engine.Defaults
}

// AnnotateUseCase checks documents chunk by chunk.
type AnnotateUseCase struct {
	rules     *RuleCache
	annotator ports.Annotator
	engine    *engine.Engine
	unbounded *engine.Engine
	cfg       AnnotateConfig
}

// NewAnnotateUseCase creates the use case. annotator may be nil, in which case
// only pattern rules run.
func NewAnnotateUseCase(rules *RuleCache, annotator ports.Annotator, cfg AnnotateConfig) *AnnotateUseCase {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10000
	}
	if cfg.AnnotatorTimeout <= 0 {
		cfg.AnnotatorTimeout = 5 * time.Second
	}
	return &AnnotateUseCase{
		rules:     rules,
		annotator: annotator,
		engine:    engine.New(cfg.Paging),
		unbounded: engine.New(engine.Defaults{Limit: cfg.Paging.Limit}),
		cfg:       cfg,
	}
}

// chunk is one fixed-size slice of a document.
type chunk struct {
	text    string
	offset  int
	total   int
	hasMore bool
}

// cut returns chunk index of text. Negative indexes select the first chunk;
// indexes past the end yield an empty chunk.
func (uc *AnnotateUseCase) cut(runes []rune, index int) chunk {
	if index < 0 {
		index = 0
	}
	total := len(runes)
	size := uc.cfg.ChunkSize
	if index > total/size {
		return chunk{offset: total, total: total}
	}
	start := index * size
	end := start + size
	if end > total {
		end = total
	}
	return chunk{
		text:    string(runes[start:end]),
		offset:  start,
		total:   total,
		hasMore: end < total,
	}
}

// Check annotates the requested chunk of req.Text and returns one page of matches.
func (uc *AnnotateUseCase) Check(ctx context.Context, req *entities.CheckRequest) (*entities.CheckResponse, error) {
	runes := []rune(req.Text)
	if uc.cfg.MaxDocumentChars > 0 && len(runes) > uc.cfg.MaxDocumentChars {
		return nil, fmt.Errorf("%w: %d > %d code points", ErrInputTooLarge, len(runes), uc.cfg.MaxDocumentChars)
	}

	c := uc.cut(runes, req.ChunkIndex)
	rules := uc.rules.Current()
	res := uc.engine.Annotate(engine.Request{
		Text:           c.text,
		ChunkOffset:    c.offset,
		DocumentLength: c.total,
		ChunkHasMore:   c.hasMore,
		Rules:          rules,
		View:           uc.annotate(ctx, c.text),
		Offset:         req.Offset,
		Limit:          req.Limit,
	})
	uc.logFailures(ctx, res.Failures)

	return &entities.CheckResponse{Page: res.Page, RulesVersion: rules.Version()}, nil
}

// CheckAll annotates every chunk of text and returns all matches in document order.
func (uc *AnnotateUseCase) CheckAll(ctx context.Context, text string) ([]entities.Match, error) {
	runes := []rune(text)
	if uc.cfg.MaxDocumentChars > 0 && len(runes) > uc.cfg.MaxDocumentChars {
		return nil, fmt.Errorf("%w: %d > %d code points", ErrInputTooLarge, len(runes), uc.cfg.MaxDocumentChars)
	}

	rules := uc.rules.Current()
	all := []entities.Match{}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := uc.cut(runes, i)
		res := uc.unbounded.Annotate(engine.Request{
			Text:           c.text,
			ChunkOffset:    c.offset,
			DocumentLength: c.total,
			Rules:          rules,
			View:           uc.annotate(ctx, c.text),
			Limit:          math.MaxInt32,
		})
		uc.logFailures(ctx, res.Failures)
		all = append(all, res.Page.Matches...)
		if !c.hasMore {
			return all, nil
		}
	}
}

// annotate calls the annotator with a timeout. Any failure degrades to a nil
// view so the request still gets pattern matches.
func (uc *AnnotateUseCase) annotate(ctx context.Context, text string) *entities.AnnotationView {
	if uc.annotator == nil || text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.AnnotatorTimeout)
	defer cancel()

	view, err := uc.annotator.Annotate(ctx, text)
	if err != nil {
		logging.WarnContext(ctx, "annotation unavailable, skipping heuristic checks", "error", err)
		return nil
	}
	return view
}

func (uc *AnnotateUseCase) logFailures(ctx context.Context, failures []engine.MatchFailure) {
	for _, f := range failures {
		logging.WarnContext(ctx, "rule failed at match time", "rule", f.RuleID, "paragraph", f.Paragraph, "error", f.Err)
	}
}
