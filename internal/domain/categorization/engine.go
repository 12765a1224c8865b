package categorization

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

type compiledRule struct {
	Rule
	upper string         // Upper-cased, trimmed pattern
	re    *regexp.Regexp // Only for MatchRegex
}

// containsIndex is an Aho-Corasick matcher over the contains patterns of one field.
type containsIndex struct {
	matcher *ahocorasick.Matcher
	rules   [][]int // pattern index -> positions in Engine.rules
}

// Engine evaluates an ordered rule set against transaction fields.
// Rules are evaluated in ascending priority and the first match wins.
//
// All contains patterns of a field are matched in a single pass with Aho-Corasick;
// the remaining match types are tested one by one during the priority scan.
// An Engine is read-only after construction and safe for concurrent use.
type Engine struct {
	rules    []compiledRule
	contains map[RuleType]*containsIndex
	invalid  []Rule
}

// NewEngine builds an engine from rules. Inactive rules are dropped and rules
// that fail validation are skipped and reported by Invalid.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{contains: make(map[RuleType]*containsIndex)}

	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if err := r.Validate(); err != nil {
			e.invalid = append(e.invalid, r)
			continue
		}
		active = append(active, r)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})

	patternIndex := make(map[RuleType]map[string]int)
	patterns := make(map[RuleType][][]byte)

	e.rules = make([]compiledRule, len(active))
	for i, r := range active {
		cr := compiledRule{Rule: r, upper: strings.ToUpper(strings.TrimSpace(r.Pattern))}
		if r.MatchType == MatchRegex {
			cr.re = regexp.MustCompile("(?i)" + r.Pattern)
		}
		e.rules[i] = cr

		if r.MatchType != MatchContains {
			continue
		}
		if patternIndex[r.RuleType] == nil {
			patternIndex[r.RuleType] = make(map[string]int)
			e.contains[r.RuleType] = &containsIndex{}
		}
		idx := e.contains[r.RuleType]
		pi, ok := patternIndex[r.RuleType][cr.upper]
		if !ok {
			pi = len(patterns[r.RuleType])
			patternIndex[r.RuleType][cr.upper] = pi
			patterns[r.RuleType] = append(patterns[r.RuleType], []byte(cr.upper))
			idx.rules = append(idx.rules, nil)
		}
		idx.rules[pi] = append(idx.rules[pi], i)
	}

	for ruleType, idx := range e.contains {
		idx.matcher = ahocorasick.NewMatcher(patterns[ruleType])
	}

	return e
}

// Apply returns the target id of the first matching rule.
func (e *Engine) Apply(fields Fields) (int64, bool) {
	if r := e.Match(fields); r != nil {
		return r.TargetID, true
	}
	return 0, false
}

// Match returns a copy of the first matching rule, or nil when no rule matches.
func (e *Engine) Match(fields Fields) *Rule {
	if len(e.rules) == 0 {
		return nil
	}

	upper := map[RuleType]string{
		RuleTypeDescription:    strings.ToUpper(fields.Description),
		RuleTypeSourceCategory: strings.ToUpper(fields.SourceCategory),
	}

	hits := make(map[int]bool)
	for ruleType, idx := range e.contains {
		value := upper[ruleType]
		if value == "" {
			continue
		}
		for _, pi := range idx.matcher.MatchThreadSafe([]byte(value)) {
			for _, ri := range idx.rules[pi] {
				hits[ri] = true
			}
		}
	}

	for i := range e.rules {
		r := &e.rules[i]
		if e.matches(r, i, fields, upper[r.RuleType], hits) {
			rule := r.Rule
			return &rule
		}
	}
	return nil
}

func (e *Engine) matches(r *compiledRule, i int, fields Fields, upper string, hits map[int]bool) bool {
	switch r.MatchType {
	case MatchContains:
		return hits[i]
	case MatchExact:
		return strings.TrimSpace(upper) == r.upper
	case MatchStartsWith:
		return strings.HasPrefix(strings.TrimSpace(upper), r.upper)
	case MatchEndsWith:
		return strings.HasSuffix(strings.TrimSpace(upper), r.upper)
	case MatchRegex:
		return r.re.MatchString(fields.value(r.RuleType))
	case MatchFuzzy:
		return upper != "" && fuzzy.MatchNormalizedFold(r.Pattern, fields.value(r.RuleType))
	}
	return false
}

// Invalid returns the active rules that were skipped because they failed validation.
func (e *Engine) Invalid() []Rule {
	return e.invalid
}

// Len returns the number of rules the engine evaluates.
func (e *Engine) Len() int {
	return len(e.rules)
}

// ApplyRules evaluates rules against fields without keeping the engine around.
func ApplyRules(fields Fields, rules []Rule) (int64, bool) {
	return NewEngine(rules).Apply(fields)
}
