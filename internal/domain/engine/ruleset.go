package engine

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// RuleSet is an immutable snapshot of compiled rules.
// It is built once per load and replaced wholesale; it is safe to share between
// concurrent requests.
type RuleSet struct {
	source   []entities.Rule
	compiled []*CompiledRule
	byID     map[string]int
	failures []*CompileError
	version  string
}

// CompileAll compiles rules in order. Rules that fail to compile, and repeated
// IDs after the first, are recorded in Failures and left out of the set.
func CompileAll(rules []entities.Rule, opts CompileOptions) *RuleSet {
	rs := &RuleSet{
		source: append([]entities.Rule(nil), rules...),
		byID:   make(map[string]int, len(rules)),
	}

	for _, rule := range rules {
		if _, dup := rs.byID[rule.ID]; dup {
			rs.failures = append(rs.failures, &CompileError{RuleID: rule.ID, Pattern: rule.Pattern, Err: ErrDuplicateRule})
			continue
		}
		cr, err := Compile(rule, opts)
		if err != nil {
			rs.failures = append(rs.failures, err.(*CompileError))
			continue
		}
		rs.byID[rule.ID] = len(rs.compiled)
		rs.compiled = append(rs.compiled, cr)
	}

	rs.version = fingerprint(rs.source)
	return rs
}

// fingerprint hashes the canonical rule records.
func fingerprint(rules []entities.Rule) string {
	data, err := json.Marshal(rules)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:12])
}

// Len returns the number of compiled rules, enabled or not.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.compiled)
}

// EnabledCount returns the number of compiled rules that will be applied.
func (rs *RuleSet) EnabledCount() int {
	return len(rs.enabled())
}

// Failures returns the compile failures recorded for this snapshot.
func (rs *RuleSet) Failures() []*CompileError {
	if rs == nil {
		return nil
	}
	return rs.failures
}

// Version is a stable fingerprint of the rule records the set was built from.
func (rs *RuleSet) Version() string {
	if rs == nil {
		return ""
	}
	return rs.version
}

// Rules returns the compiled rules' records in load order.
func (rs *RuleSet) Rules() []entities.Rule {
	if rs == nil {
		return nil
	}
	out := make([]entities.Rule, len(rs.compiled))
	for i, cr := range rs.compiled {
		out[i] = cr.Rule
	}
	return out
}

// Lookup returns the compiled rule record with the given ID.
func (rs *RuleSet) Lookup(id string) (entities.Rule, bool) {
	if rs == nil {
		return entities.Rule{}, false
	}
	i, ok := rs.byID[id]
	if !ok {
		return entities.Rule{}, false
	}
	return rs.compiled[i].Rule, true
}

// WithDisabled returns a new snapshot where rule id has the given disabled state.
// Matchers are shared with the receiver, so nothing is recompiled.
// The second result is false when id is not a compiled rule.
func (rs *RuleSet) WithDisabled(id string, disabled bool) (*RuleSet, bool) {
	if rs == nil {
		return nil, false
	}
	i, ok := rs.byID[id]
	if !ok {
		return rs, false
	}

	next := &RuleSet{
		source:   make([]entities.Rule, len(rs.source)),
		compiled: append([]*CompiledRule(nil), rs.compiled...),
		byID:     rs.byID,
		failures: rs.failures,
	}
	copy(next.source, rs.source)
	for j := range next.source {
		if next.source[j].ID == id {
			next.source[j].Disabled = disabled
			break
		}
	}

	toggled := *rs.compiled[i]
	toggled.Rule.Disabled = disabled
	next.compiled[i] = &toggled
	next.version = fingerprint(next.source)
	return next, true
}

// enabled returns the compiled rules applied at match time.
func (rs *RuleSet) enabled() []*CompiledRule {
	if rs == nil {
		return nil
	}
	out := make([]*CompiledRule, 0, len(rs.compiled))
	for _, cr := range rs.compiled {
		if !cr.Rule.Disabled {
			out = append(out, cr)
		}
	}
	return out
}
