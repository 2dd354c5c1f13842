package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPattern: the rule has no pattern after stripping inline flags.
	ErrEmptyPattern = errors.New("empty pattern")
	// ErrInvalidPattern: the pattern failed to compile.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrDuplicateRule: a rule with the same ID was already compiled.
	ErrDuplicateRule = errors.New("duplicate rule id")
	// ErrMatchRuntime: a compiled pattern failed while matching (timeout or internal failure).
	ErrMatchRuntime = errors.New("match runtime failure")
)

// CompileError records why a single rule was excluded from the compiled set.
type CompileError struct {
	RuleID  string
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.RuleID, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// MatchFailure records a rule/paragraph pair whose results were dropped.
type MatchFailure struct {
	RuleID    string
	Paragraph int
	Err       error
}

func (f MatchFailure) Error() string {
	return fmt.Sprintf("rule %q paragraph %d: %v", f.RuleID, f.Paragraph, f.Err)
}

func (f MatchFailure) Unwrap() error { return f.Err }
