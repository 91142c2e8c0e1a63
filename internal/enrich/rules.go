// Package enrich filters postings to qualifying executive sales roles and
// derives structured attributes from free text. Every classification
// dimension is an ordered list of (predicate, label) rules with an
// explicit fallback, so rule sets are independently testable and tunable
// and never fail a record.
package enrich

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rule is one (predicate, label) pair. The predicate matches when any of
// the Any patterns is a substring of the input and every All pattern is.
type Rule struct {
	Label string   `yaml:"label"`
	Any   []string `yaml:"any,omitempty"`
	All   []string `yaml:"all,omitempty"`
}

func (r Rule) matches(text string) bool {
	for _, p := range r.All {
		if !strings.Contains(text, strings.ToLower(p)) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return len(r.All) > 0
	}
	for _, p := range r.Any {
		if strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// RuleSet is one classification dimension: rules evaluated in priority
// order, first match wins, with an explicit fallback label.
type RuleSet struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

// Classify returns the label of the first matching rule, or the default.
// It is pure: the same text and rule table always yield the same label.
func (rs RuleSet) Classify(text string) string {
	text = strings.ToLower(text)
	for _, r := range rs.Rules {
		if r.matches(text) {
			return r.Label
		}
	}
	return rs.Default
}

// Labels returns every label the rule set can produce, fallback included.
func (rs RuleSet) Labels() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rs.Rules {
		if !seen[r.Label] {
			seen[r.Label] = true
			out = append(out, r.Label)
		}
	}
	if !seen[rs.Default] {
		out = append(out, rs.Default)
	}
	return out
}

// Tables bundles the rule tables for every classification dimension plus
// the seniority-gate vocabulary.
type Tables struct {
	Seniority       RuleSet  `yaml:"seniority"`
	Stage           RuleSet  `yaml:"stage"`
	StageOverrides  RuleSet  `yaml:"stage_overrides"`
	Industry        RuleSet  `yaml:"industry"`
	Metro           RuleSet  `yaml:"metro"`
	WorkArrangement RuleSet  `yaml:"work_arrangement"`
	Methodologies   []Rule   `yaml:"methodologies"`
	TechIndustries  []string `yaml:"tech_industries"`
	GateVocabulary  Gate     `yaml:"gate"`
}

// LoadTables returns the built-in rule tables, overridden by the YAML
// file at path when one is given. Missing dimensions in the file keep
// their built-in rules.
func LoadTables(path string) (*Tables, error) {
	t := defaultTables()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read rules %s", path)
	}

	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrapf(err, "enrich: parse rules %s", path)
	}

	if len(override.Seniority.Rules) > 0 {
		t.Seniority = override.Seniority
	}
	if len(override.Stage.Rules) > 0 {
		t.Stage = override.Stage
	}
	if len(override.StageOverrides.Rules) > 0 {
		t.StageOverrides = override.StageOverrides
	}
	if len(override.Industry.Rules) > 0 {
		t.Industry = override.Industry
	}
	if len(override.Metro.Rules) > 0 {
		t.Metro = override.Metro
	}
	if len(override.WorkArrangement.Rules) > 0 {
		t.WorkArrangement = override.WorkArrangement
	}
	if len(override.Methodologies) > 0 {
		t.Methodologies = override.Methodologies
	}
	if len(override.TechIndustries) > 0 {
		t.TechIndustries = override.TechIndustries
	}
	if len(override.GateVocabulary.ExecutiveTitles) > 0 {
		t.GateVocabulary = override.GateVocabulary
	}

	return t, nil
}
