package enrich

import (
	"sort"
	"strings"

	"github.com/cro-report/jobs-cli/internal/model"
)

// Apply derives every classification dimension for a record in place. It
// is pure and deterministic: the same record and rule tables always yield
// the same classification, so re-running enrichment on stored data never
// drifts. Classification never fails the record; unmatched dimensions get
// their fallback label.
func Apply(rec *model.JobRecord, t *Tables) {
	padded := " " + strings.ToLower(rec.Title) + " "
	desc := strings.ToLower(rec.Description)
	locTitleDesc := strings.ToLower(rec.Location + " " + rec.Title + " " + rec.Description)

	seniority := t.Seniority.Classify(padded)
	compMax := 0.0
	if rec.CompMax != nil {
		compMax = *rec.CompMax
	}
	rec.Seniority = ValidateSeniority(rec.Title, seniority, compMax)

	rec.Metro = t.Metro.Classify(strings.ToLower(rec.Location))
	rec.WorkArrangement = t.WorkArrangement.Classify(locTitleDesc)
	rec.Industry = t.Industry.Classify(desc)
	rec.CompanyStage = classifyStage(t, rec.Company, desc, compMax)
	rec.Tech = isTech(t, rec.Industry)
	rec.Methodologies = matchMethodologies(t, desc)
}

// classifyStage checks the known-company override table first, then runs
// the stage rule table over the description, then falls back to
// comp-based inference: a company paying $350K+ base for an executive
// sales role is at least late growth stage.
func classifyStage(t *Tables, company, desc string, compMax float64) string {
	if stage := t.StageOverrides.Classify(company); stage != t.StageOverrides.Default {
		return stage
	}
	stage := t.Stage.Classify(desc)
	if stage != t.Stage.Default {
		return stage
	}
	if compMax >= 350000 {
		return "Late Stage"
	}
	if compMax >= 250000 {
		return "Series B/C"
	}
	return stage
}

func isTech(t *Tables, industry string) bool {
	for _, ti := range t.TechIndustries {
		if industry == ti {
			return true
		}
	}
	return false
}

// matchMethodologies returns every methodology/tool flag whose rule
// matches the description, sorted for deterministic output.
func matchMethodologies(t *Tables, desc string) []string {
	padded := " " + desc + " "
	var out []string
	for _, r := range t.Methodologies {
		if r.matches(padded) {
			out = append(out, r.Label)
		}
	}
	sort.Strings(out)
	return out
}
