package classify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RuleSpec is the YAML form of a rule. Exactly one of Literal, Literals or
// Regex must be set; predicate rules exist only in the built-in tables.
type RuleSpec struct {
	Priority       int      `yaml:"priority" json:"priority"`
	Result         string   `yaml:"result" json:"result"`
	Literal        string   `yaml:"literal,omitempty" json:"literal,omitempty"`
	Literals       []string `yaml:"literals,omitempty" json:"literals,omitempty"`
	Regex          string   `yaml:"regex,omitempty" json:"regex,omitempty"`
	MustInclude    []string `yaml:"must_include,omitempty" json:"must_include,omitempty"`
	MustNotInclude []string `yaml:"must_not_include,omitempty" json:"must_not_include,omitempty"`
	Exclusive      bool     `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`
}

type RulesFile struct {
	Rules []RuleSpec `yaml:"rules" json:"rules"`
}

// LoadRules reads a rule table from a YAML file. The loaded table replaces
// a built-in one wholesale, so operators can reorder priorities without
// rebuilding. An empty path returns fallback().
func LoadRules(path string, fallback func() []Rule) ([]Rule, error) {
	if path == "" {
		return fallback(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var file RulesFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if len(file.Rules) == 0 {
		return nil, errors.New("no classification rules configured")
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := spec.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, spec.Result, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s RuleSpec) compile() (Rule, error) {
	if s.Result == "" {
		return Rule{}, errors.New("result required")
	}

	var matcher Matcher
	switch {
	case s.Regex != "":
		re, err := regexp.Compile(s.Regex)
		if err != nil {
			return Rule{}, err
		}
		matcher = Regex{re: re}
	case len(s.Literals) > 0:
		matcher = AnyLiteral(s.Literals)
	case s.Literal != "":
		matcher = Literal(s.Literal)
	default:
		return Rule{}, errors.New("one of literal, literals or regex required")
	}

	return Rule{
		Priority:       s.Priority,
		Match:          matcher,
		Result:         s.Result,
		MustInclude:    s.MustInclude,
		MustNotInclude: s.MustNotInclude,
		Exclusive:      s.Exclusive,
	}, nil
}
