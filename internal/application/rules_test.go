package application

import (
	"os"
	"path/filepath"
	"testing"

	"walletfeed/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	cases := []struct {
		method string
		want   domain.Category
		ok     bool
	}{
		{"approve", domain.CategoryApproval, true},
		{"setApprovalForAll", "", false},
		{"increaseAllowance", domain.CategoryApproval, true},
		{"DecreaseAllowance", domain.CategoryApproval, true},
		{"swapExactETHForTokens", domain.CategorySwap, true},
		{"multicallSwap", domain.CategorySwap, true},
		{"gm", domain.CategoryGM, true},
		{"sayGM", domain.CategoryGM, true},
		{"gmx", "", false},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := rules.Classify(tc.method)
		require.Equal(t, tc.ok, ok, tc.method)
		require.Equal(t, tc.want, got, tc.method)
	}
}

func TestRuleTable_FirstMatchWins(t *testing.T) {
	rules := RuleTable{
		{Name: "a", Category: "first", Match: Contains("swap")},
		{Name: "b", Category: "second", Match: Contains("swap")},
	}
	got, ok := rules.Classify("swap")
	require.True(t, ok)
	require.Equal(t, domain.Category("first"), got)
}

func TestLoadRules_AppendsFileRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[rule]]
name = "bridge"
category = "Bridge"
contains = ["bridge", "depositTransaction"]

[[rule]]
category = "mint"
prefix = ["mint"]
equals = ["claim"]

[[rule]]
name = "shadowed"
category = "never"
contains = ["approve"]
`), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, len(DefaultRules())+3)
	require.Equal(t, "mint", rules[len(rules)-2].Name)

	got, ok := rules.Classify("depositTransaction")
	require.True(t, ok)
	require.Equal(t, domain.Category("bridge"), got)

	got, _ = rules.Classify("mintBatch")
	require.Equal(t, domain.Category("mint"), got)
	got, _ = rules.Classify("Claim")
	require.Equal(t, domain.Category("mint"), got)

	got, _ = rules.Classify("approve")
	require.Equal(t, domain.CategoryApproval, got, "defaults run first")
}

func TestLoadRules_EmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	require.Len(t, rules, len(DefaultRules()))
}

func TestLoadRules_InvalidFiles(t *testing.T) {
	dir := t.TempDir()

	missingMatcher := filepath.Join(dir, "no-matcher.toml")
	require.NoError(t, os.WriteFile(missingMatcher, []byte("[[rule]]\ncategory = \"x\"\n"), 0o644))
	_, err := LoadRules(missingMatcher)
	require.Error(t, err)

	missingCategory := filepath.Join(dir, "no-category.toml")
	require.NoError(t, os.WriteFile(missingCategory, []byte("[[rule]]\ncontains = [\"x\"]\n"), 0o644))
	_, err = LoadRules(missingCategory)
	require.Error(t, err)

	_, err = LoadRules(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}
