// Package engine is the document annotation engine: rule compilation, chunked
// scanning with document-absolute offsets, heuristic detectors, and result paging.
// It does no I/O and holds no state between calls.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// CompileOptions tune every matcher in a rule set.
type CompileOptions struct {
	// MatchTimeout bounds a single match attempt. Zero means no limit.
	MatchTimeout time.Duration
}

// CompiledRule pairs a rule with its executable matcher.
type CompiledRule struct {
	Rule    entities.Rule
	matcher *regexp2.Regexp
}

// inlineFlags are the letters accepted in a leading (?...) prefix.
type inlineFlags struct {
	ignoreCase bool
	multiline  bool
	dotAll     bool
}

// splitInlineFlags strips a leading "(?ims)"-style prefix. A prefix holding any
// other character, such as "(?:" or "(?i:", is left in the pattern.
func splitInlineFlags(pattern string) (string, inlineFlags) {
	var flags inlineFlags
	if !strings.HasPrefix(pattern, "(?") {
		return pattern, flags
	}
	end := strings.IndexByte(pattern, ')')
	if end <= 2 {
		return pattern, flags
	}
	for _, c := range pattern[2:end] {
		switch c {
		case 'i':
			flags.ignoreCase = true
		case 'm':
			flags.multiline = true
		case 's':
			flags.dotAll = true
		default:
			return pattern, inlineFlags{}
		}
	}
	return pattern[end+1:], flags
}

// Compile turns a rule into an executable matcher.
// The rule's IgnoreCase/Multiline fields are the base flags; an inline prefix adds to them.
func Compile(rule entities.Rule, opts CompileOptions) (*CompiledRule, error) {
	body, flags := splitInlineFlags(rule.Pattern)
	if strings.TrimSpace(body) == "" {
		return nil, &CompileError{RuleID: rule.ID, Pattern: rule.Pattern, Err: ErrEmptyPattern}
	}

	options := regexp2.None
	if rule.IgnoreCase || flags.ignoreCase {
		options |= regexp2.IgnoreCase
	}
	if rule.Multiline || flags.multiline {
		options |= regexp2.Multiline
	}
	if flags.dotAll {
		options |= regexp2.Singleline
	}

	re, err := regexp2.Compile(body, options)
	if err != nil {
		return nil, &CompileError{
			RuleID:  rule.ID,
			Pattern: rule.Pattern,
			Err:     fmt.Errorf("%w: %v", ErrInvalidPattern, err),
		}
	}
	if opts.MatchTimeout > 0 {
		re.MatchTimeout = opts.MatchTimeout
	}

	return &CompiledRule{Rule: rule, matcher: re}, nil
}

// findAll returns the non-overlapping, non-empty match spans in text.
// Spans are code point offsets into text. Empty matches advance the scan by one
// code point and are not reported.
func (c *CompiledRule) findAll(text []rune) (spans []entities.Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = fmt.Errorf("%w: %v", ErrMatchRuntime, r)
		}
	}()

	m, err := c.matcher.FindRunesMatch(text)
	for m != nil && err == nil {
		if m.Length > 0 {
			spans = append(spans, entities.Span{Start: m.Index, End: m.Index + m.Length})
		}
		m, err = c.matcher.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatchRuntime, err)
	}
	return spans, nil
}
