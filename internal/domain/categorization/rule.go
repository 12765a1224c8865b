package categorization

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// RuleType selects the transaction field a rule is tested against.
type RuleType string

const (
	RuleTypeDescription    RuleType = "description"
	RuleTypeSourceCategory RuleType = "source_category"
)

// MatchType selects how a rule pattern is compared with the field value.
// All comparisons are case-insensitive.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchRegex      MatchType = "regex"
	MatchFuzzy      MatchType = "fuzzy" // pattern characters appear in order, accents folded
)

// Kind distinguishes rules that assign a unit (budget bucket) from rules that assign a category.
type Kind string

const (
	KindUnit     Kind = "unit"
	KindCategory Kind = "category"
)

var (
	ErrInvalidRule  = errors.New("invalid rule")
	ErrRuleNotFound = errors.New("rule not found")
	ErrUnknownKind  = errors.New("unknown rule kind")
)

// Rule maps a pattern on one transaction field to a unit or category id.
// Lower Priority values are evaluated first.
type Rule struct {
	ID        int64     `json:"id" csv:"id"`
	RuleType  RuleType  `json:"rule_type" csv:"rule_type"`
	Pattern   string    `json:"pattern" csv:"pattern"`
	MatchType MatchType `json:"match_type" csv:"match_type"`
	TargetID  int64     `json:"target_id" csv:"target_id"`
	Priority  int       `json:"priority" csv:"priority"`
	Active    bool      `json:"active" csv:"active"`
}

// Validate reports whether the rule can be evaluated.
func (r Rule) Validate() error {
	switch r.RuleType {
	case RuleTypeDescription, RuleTypeSourceCategory:
	default:
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, r.RuleType)
	}

	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}

	switch r.MatchType {
	case MatchContains, MatchExact, MatchStartsWith, MatchEndsWith, MatchFuzzy:
	case MatchRegex:
		if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	default:
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, r.MatchType)
	}

	return nil
}

// Fields are the transaction values rules are evaluated against.
type Fields struct {
	Description    string
	SourceCategory string
}

func (f Fields) value(t RuleType) string {
	if t == RuleTypeSourceCategory {
		return f.SourceCategory
	}
	return f.Description
}
