// Package rulesource provides rule source adapters.
// Clean Architecture: Adapters implementing ports.RuleSource.
// Every source funnels its raw records through Normalize, so legacy key names
// never reach the engine.
package rulesource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/logging"
)

// ErrNoPattern marks a record without a usable pattern.
var ErrNoPattern = errors.New("rule record has no pattern")

// Record is one raw rule record as decoded from JSON or a database row.
type Record map[string]any

var (
	idKeys          = []string{"id", "rule_id", "ruleId", "name"}
	patternKeys     = []string{"pattern", "regex", "rule", "match"}
	suggestionKeys  = []string{"sidebar", "issue", "suggestion", "message", "description"}
	replacementKeys = []string{"replacement", "replace", "fix"}
	ignoreCaseKeys  = []string{"ignore_case", "ignoreCase"}
)

// Normalize maps one raw record onto the canonical rule shape.
// index is the record's position and seeds a generated ID when none is present.
// IgnoreCase and Multiline default to true.
func Normalize(rec Record, index int) (entities.Rule, error) {
	rule := entities.Rule{IgnoreCase: true, Multiline: true}

	if v, ok := first(rec, idKeys); ok {
		rule.ID = toString(v)
	}
	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = fmt.Sprintf("auto-%d", index)
	}

	if v, ok := first(rec, patternKeys); ok {
		rule.Pattern = toString(v)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return rule, fmt.Errorf("record %d (%s): %w", index, rule.ID, ErrNoPattern)
	}

	if v, ok := first(rec, suggestionKeys); ok {
		rule.Suggestion = norm.NFC.String(toString(v))
	}
	if v, ok := first(rec, replacementKeys); ok {
		rule.Replacement = norm.NFC.String(toString(v))
	}

	if v, ok := first(rec, ignoreCaseKeys); ok {
		rule.IgnoreCase = toBool(v, true)
	} else if v, ok := rec["case_sensitive"]; ok && v != nil {
		rule.IgnoreCase = !toBool(v, false)
	}
	if v, ok := rec["multiline"]; ok && v != nil {
		rule.Multiline = toBool(v, true)
	}

	switch {
	case has(rec, "disabled"):
		rule.Disabled = toBool(rec["disabled"], false)
	case has(rec, "inactive"):
		rule.Disabled = toBool(rec["inactive"], false)
	case has(rec, "enabled"):
		rule.Disabled = !toBool(rec["enabled"], true)
	}
	return rule, nil
}

// NormalizeAll normalizes records in order. Records that fail are skipped and
// returned as errors alongside the usable rules.
func NormalizeAll(records []Record) ([]entities.Rule, []error) {
	rules := make([]entities.Rule, 0, len(records))
	var skipped []error
	for i, rec := range records {
		rule, err := Normalize(rec, i)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules, skipped
}

// normalizeAndLog is the common tail of every source's Load.
func normalizeAndLog(source string, records []Record) []entities.Rule {
	rules, skipped := NormalizeAll(records)
	for _, err := range skipped {
		logging.Warn("rule record skipped", "source", source, "error", err)
	}
	return rules
}

// DecodeRecords reads either a JSON array of records or an object holding one
// under "rules".
func DecodeRecords(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}

	var records []Record
	if err := unmarshalNumbers(raw, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Rules []Record `json:"rules"`
	}
	if err := unmarshalNumbers(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	if wrapped.Rules == nil {
		return nil, errors.New("decoding rules: expected an array or an object with \"rules\"")
	}
	return wrapped.Rules, nil
}

func unmarshalNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func first(rec Record, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func has(rec Record, key string) bool {
	v, ok := rec[key]
	return ok && v != nil
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func toBool(v any, fallback bool) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return fallback
		}
		return b
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return fallback
		}
		return f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return fallback
	}
}
