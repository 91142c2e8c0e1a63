package lifecycle

import (
	"sort"
	"strings"

	"github.com/cro-report/jobs-cli/internal/model"
)

// Substitutes scores Live records against a Stale record and returns the
// ids of the top n. Scoring considers only Live records and is kept
// separate from lifecycle derivation: matching company outweighs
// seniority tier, which outweighs metro and industry, and disclosed
// compensation breaks near-ties. Ties resolve by id so output is stable
// across runs.
func Substitutes(stale *model.JobRecord, live []*model.JobRecord, n int) []string {
	if n <= 0 || len(live) == 0 {
		return nil
	}

	type scored struct {
		id    string
		score int
	}
	candidates := make([]scored, 0, len(live))
	for _, l := range live {
		if l.ID == stale.ID {
			continue
		}
		score := 0
		if strings.EqualFold(l.Company, stale.Company) && stale.Company != "" {
			score += 50
		}
		if l.Seniority == stale.Seniority {
			score += 30
		}
		if l.Metro == stale.Metro && stale.Metro != "" {
			score += 20
		}
		if l.Industry == stale.Industry && stale.Industry != "" {
			score += 10
		}
		if l.Disclosed {
			score += 5
		}
		candidates = append(candidates, scored{id: l.ID, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]string, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, c.id)
	}
	return out
}
