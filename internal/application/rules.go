package application

import (
	"errors"
	"fmt"
	"strings"

	"walletfeed/internal/domain"

	"github.com/BurntSushi/toml"
)

// Rule maps a lower-cased method name to a category when Match accepts it.
type Rule struct {
	Name     string
	Category domain.Category
	Match    func(method string) bool
}

// RuleTable is evaluated in order; the first matching rule wins.
type RuleTable []Rule

func DefaultRules() RuleTable {
	return RuleTable{
		{Name: "approval", Category: domain.CategoryApproval, Match: Contains("approve", "increaseallowance", "decreaseallowance")},
		{Name: "swap", Category: domain.CategorySwap, Match: Contains("swap")},
		{Name: "gm", Category: domain.CategoryGM, Match: Equals("gm", "saygm")},
	}
}

func (t RuleTable) Classify(method string) (domain.Category, bool) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return "", false
	}
	for _, rule := range t {
		if rule.Match != nil && rule.Match(method) {
			return rule.Category, true
		}
	}
	return "", false
}

func Contains(fragments ...string) func(string) bool {
	return func(method string) bool {
		for _, fragment := range fragments {
			if strings.Contains(method, fragment) {
				return true
			}
		}
		return false
	}
}

func Equals(names ...string) func(string) bool {
	return func(method string) bool {
		for _, name := range names {
			if method == name {
				return true
			}
		}
		return false
	}
}

func HasPrefix(prefixes ...string) func(string) bool {
	return func(method string) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(method, prefix) {
				return true
			}
		}
		return false
	}
}

type ruleFile struct {
	Rules []ruleSpec `toml:"rule"`
}

type ruleSpec struct {
	Name     string   `toml:"name"`
	Category string   `toml:"category"`
	Contains []string `toml:"contains"`
	Equals   []string `toml:"equals"`
	Prefix   []string `toml:"prefix"`
}

// LoadRules reads extra rules from a TOML file and appends them after the
// defaults. An empty path yields the defaults.
func LoadRules(path string) (RuleTable, error) {
	table := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}
	var file ruleFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode rules %s: %w", path, err)
	}
	for i, spec := range file.Rules {
		rule, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		table = append(table, rule)
	}
	return table, nil
}

func (s ruleSpec) build() (Rule, error) {
	if strings.TrimSpace(s.Category) == "" {
		return Rule{}, errors.New("category is required")
	}
	var matchers []func(string) bool
	if len(s.Contains) > 0 {
		matchers = append(matchers, Contains(lowerAll(s.Contains)...))
	}
	if len(s.Equals) > 0 {
		matchers = append(matchers, Equals(lowerAll(s.Equals)...))
	}
	if len(s.Prefix) > 0 {
		matchers = append(matchers, HasPrefix(lowerAll(s.Prefix)...))
	}
	if len(matchers) == 0 {
		return Rule{}, errors.New("at least one of contains, equals or prefix is required")
	}
	name := s.Name
	if name == "" {
		name = s.Category
	}
	return Rule{
		Name:     name,
		Category: domain.Category(strings.ToLower(s.Category)),
		Match: func(method string) bool {
			for _, match := range matchers {
				if match(method) {
					return true
				}
			}
			return false
		},
	}, nil
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.ToLower(strings.TrimSpace(value)); value != "" {
			out = append(out, value)
		}
	}
	return out
}
