package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSet_FirstMatchWins(t *testing.T) {
	rs := stageRules()
	// Text matching both Series C/D and Series B/C resolves to the
	// higher-priority rule.
	assert.Equal(t, "Series C/D", rs.Classify("we raised a series c after our series b"))
	assert.Equal(t, "Unknown", rs.Classify("a growing company"))
}

func TestRuleSet_AllPredicates(t *testing.T) {
	rs := RuleSet{
		Default: "no",
		Rules:   []Rule{{Label: "yes", All: []string{"alpha", "beta"}}},
	}
	assert.Equal(t, "yes", rs.Classify("alpha and beta"))
	assert.Equal(t, "no", rs.Classify("alpha only"))
}

func TestRuleSet_Labels(t *testing.T) {
	labels := seniorityRules().Labels()
	assert.Equal(t, []string{"C-Level", "EVP", "SVP", "VP", "Head of", "Other"}, labels)
}

func TestMetroRules(t *testing.T) {
	rs := metroRules()
	tests := []struct {
		location string
		want     string
	}{
		{"san francisco, ca", "San Francisco"},
		{"palo alto, ca", "San Francisco"},
		{"new york, ny", "New York"},
		{"remote", "Remote"},
		{"austin, tx", "Austin"},
		{"dallas, tx", "Texas"},
		{"houston, tx", "Texas"},
		{"boise, id", "Other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rs.Classify(tt.location), "location %q", tt.location)
	}
}

func TestLoadTables_Defaults(t *testing.T) {
	tables, err := LoadTables("")
	require.NoError(t, err)
	assert.Equal(t, "Other", tables.Seniority.Default)
	assert.NotEmpty(t, tables.GateVocabulary.ExecutiveTitles)
}

func TestLoadTables_YAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `
seniority:
  default: Unranked
  rules:
    - label: Boss
      any: ["boss"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, "Boss", tables.Seniority.Classify("the big boss"))
	assert.Equal(t, "Unranked", tables.Seniority.Classify("nothing"))
	// Dimensions absent from the file keep built-in rules.
	assert.Equal(t, "Austin", tables.Metro.Classify("austin, tx"))
}

func TestLoadTables_BadFile(t *testing.T) {
	_, err := LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
