// Package resolve decides whether an incoming posting is a new record or
// a re-observation of an existing one, and defines the field-merge rules
// applied on re-observation.
package resolve

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cro-report/jobs-cli/internal/ingest"
	"github.com/cro-report/jobs-cli/internal/model"
)

// Match kinds reported by Resolve.
const (
	MatchExact   = "exact"
	MatchSimilar = "similar"
	MatchNone    = "none"
)

// Resolver indexes the master store's current state for identity lookup.
// Build one per batch; it does not observe later mutations.
type Resolver struct {
	threshold      int // percent, 0-100
	byID           map[string]*model.JobRecord
	byCompanyMetro map[string][]*model.JobRecord
}

// NewResolver indexes the given records. threshold is the minimum
// normalized-title token overlap (0.0-1.0) for a similarity hit.
func NewResolver(records []*model.JobRecord, threshold float64) *Resolver {
	r := &Resolver{
		threshold:      int(threshold * 100),
		byID:           make(map[string]*model.JobRecord, len(records)),
		byCompanyMetro: make(map[string][]*model.JobRecord),
	}
	for _, rec := range records {
		r.byID[rec.ID] = rec
		key := companyMetroKey(rec.Company, rec.Metro)
		r.byCompanyMetro[key] = append(r.byCompanyMetro[key], rec)
	}
	return r
}

// Add registers a newly inserted record so later rows in the same batch
// resolve against it.
func (r *Resolver) Add(rec *model.JobRecord) {
	r.byID[rec.ID] = rec
	key := companyMetroKey(rec.Company, rec.Metro)
	r.byCompanyMetro[key] = append(r.byCompanyMetro[key], rec)
}

// Get returns the indexed record for an id, if any.
func (r *Resolver) Get(id string) *model.JobRecord {
	return r.byID[id]
}

// Resolve looks up an incoming record: exact identity-hash match first,
// then a similarity pass over postings at the same company and metro to
// catch near-duplicates scraped from different sources.
func (r *Resolver) Resolve(incoming *model.JobRecord) (*model.JobRecord, string) {
	if existing, ok := r.byID[incoming.ID]; ok {
		return existing, MatchExact
	}

	key := companyMetroKey(incoming.Company, incoming.Metro)
	candidates := r.byCompanyMetro[key]
	if len(candidates) == 0 || incoming.Company == "" {
		return nil, MatchNone
	}

	tokens := ingest.TitleTokens(incoming.Title)
	if len(tokens) == 0 {
		return nil, MatchNone
	}

	var best *model.JobRecord
	bestOverlap := 0
	for _, c := range candidates {
		overlap := tokenOverlapPct(tokens, ingest.TitleTokens(c.Title))
		if overlap >= r.threshold && overlap > bestOverlap {
			best = c
			bestOverlap = overlap
		}
	}
	if best == nil {
		return nil, MatchNone
	}

	zap.L().Debug("resolve: similarity match",
		zap.String("incoming_id", incoming.ID),
		zap.String("matched_id", best.ID),
		zap.Int("overlap_pct", bestOverlap),
	)
	return best, MatchSimilar
}

// tokenOverlapPct returns the Jaccard overlap of two token sets as an
// integer percentage.
func tokenOverlapPct(a, b map[string]bool) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return inter * 100 / union
}

func companyMetroKey(company, metro string) string {
	return strings.ToLower(company) + "|" + strings.ToLower(metro)
}

// MergeResult reports what Merge changed.
type MergeResult struct {
	Changed  bool
	Conflict bool
}

// Merge folds a re-observation into an existing record: the most recently
// disclosed compensation wins over older undisclosed values, the longer
// description is kept, last_seen advances to the snapshot date and
// first_seen is untouched. A conflicting company on the same id keeps the
// earliest-seen version and reports the conflict.
func Merge(existing *model.JobRecord, incoming *model.JobRecord, snapshotDate time.Time) MergeResult {
	var res MergeResult

	if !strings.EqualFold(existing.Company, incoming.Company) && incoming.Company != "" && existing.Company != "" {
		// Same id, different company: identity collision on an immutable
		// attribute. Keep the earliest-seen version.
		res.Conflict = true
		zap.L().Warn("resolve: identity conflict, retaining earliest version",
			zap.String("id", existing.ID),
			zap.String("existing_company", existing.Company),
			zap.String("incoming_company", incoming.Company),
		)
		if snapshotDate.After(existing.LastSeen) {
			existing.LastSeen = snapshotDate
			res.Changed = true
		}
		return res
	}

	if incoming.Disclosed {
		if !existing.Disclosed ||
			existing.CompMin == nil || existing.CompMax == nil ||
			*existing.CompMin != *incoming.CompMin || *existing.CompMax != *incoming.CompMax {
			existing.CompMin = incoming.CompMin
			existing.CompMax = incoming.CompMax
			existing.Currency = incoming.Currency
			existing.Disclosed = true
			res.Changed = true
		}
	}

	if len(incoming.Description) > len(existing.Description) {
		existing.Description = incoming.Description
		res.Changed = true
	}

	if existing.Location == "" && incoming.Location != "" {
		existing.Location = incoming.Location
		existing.Metro = incoming.Metro
		res.Changed = true
	}
	if existing.SourceURL == "" && incoming.SourceURL != "" {
		existing.SourceURL = incoming.SourceURL
		res.Changed = true
	}
	if existing.PostingDate == nil && incoming.PostingDate != nil {
		existing.PostingDate = incoming.PostingDate
		res.Changed = true
	}

	if snapshotDate.After(existing.LastSeen) {
		existing.LastSeen = snapshotDate
		existing.SourceBatchID = incoming.SourceBatchID
		res.Changed = true
	}

	return res
}
