package classify

import (
	"regexp"
	"sort"
	"strings"
)

// Matcher is the closed set of pattern variants a rule may carry: a literal
// substring, a list of alternative literals, a compiled regular expression,
// or a named predicate. All matching runs against uppercased text.
type Matcher interface {
	Match(text string) bool
}

type Literal string

func (l Literal) Match(text string) bool {
	return strings.Contains(text, string(l))
}

// AnyLiteral matches when any one of its alternatives is present.
type AnyLiteral []string

func (a AnyLiteral) Match(text string) bool {
	for _, alt := range a {
		if strings.Contains(text, alt) {
			return true
		}
	}
	return false
}

type Regex struct {
	re *regexp.Regexp
}

func NewRegex(pattern string) Regex {
	return Regex{re: regexp.MustCompile(pattern)}
}

func (r Regex) Match(text string) bool {
	return r.re.MatchString(text)
}

// Predicate covers compound checks that literals and regexes cannot
// express, such as implicit plain-film detection.
type Predicate func(text string) bool

func (p Predicate) Match(text string) bool {
	return p(text)
}

// Rule is one entry of an ordered classification table. Lower priority is
// evaluated first. MustInclude terms must all be present and MustNotInclude
// terms must all be absent for the rule to fire.
type Rule struct {
	Priority       int
	Match          Matcher
	Result         string
	MustInclude    []string
	MustNotInclude []string

	// Exclusive short-circuits multi-valued accumulation: when an
	// exclusive rule fires, its result is the whole answer. Used for
	// whole-body range studies whose text would otherwise also hit
	// region keywords.
	Exclusive bool
}

func (r Rule) satisfied(text string) bool {
	if r.Match == nil || !r.Match.Match(text) {
		return false
	}
	for _, term := range r.MustInclude {
		if !strings.Contains(text, term) {
			return false
		}
	}
	for _, term := range r.MustNotInclude {
		if strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// RuleSet is an immutable, priority-ordered rule table evaluated by one
// generic engine.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules []Rule) RuleSet {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return RuleSet{rules: sorted}
}

func (rs RuleSet) Len() int {
	return len(rs.rules)
}

// First returns the result of the first fully-satisfied rule.
func (rs RuleSet) First(text string) (string, bool) {
	for _, rule := range rs.rules {
		if rule.satisfied(text) {
			return rule.Result, true
		}
	}
	return "", false
}

// All accumulates the results of every satisfied rule in priority order,
// deduplicated. An exclusive rule that fires ends the scan with only its
// own result.
func (rs RuleSet) All(text string) []string {
	var results []string
	seen := make(map[string]struct{})
	for _, rule := range rs.rules {
		if !rule.satisfied(text) {
			continue
		}
		if rule.Exclusive {
			return []string{rule.Result}
		}
		if _, dup := seen[rule.Result]; dup {
			continue
		}
		seen[rule.Result] = struct{}{}
		results = append(results, rule.Result)
	}
	return results
}
