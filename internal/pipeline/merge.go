package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/cro-report/jobs-cli/internal/model"
	"github.com/cro-report/jobs-cli/internal/resolve"
)

// MergeSummary counts the outcomes of one batch merge.
type MergeSummary struct {
	Created   int
	Updated   int
	Unchanged int
	Conflicts int
}

// mergeBatch folds gated, enriched records into a working copy of the
// master store. Records are processed in input order so repeated runs
// over the same file produce the same commit. Re-observations that change
// nothing produce no changelog event, which keeps re-ingestion of an
// already-processed batch a no-op.
func mergeBatch(existing []model.JobRecord, incoming []model.JobRecord, snapshotDate time.Time, threshold float64) (model.BatchCommit, MergeSummary) {
	working := make([]*model.JobRecord, len(existing))
	for i := range existing {
		rec := existing[i]
		working[i] = &rec
	}
	resolver := resolve.NewResolver(working, threshold)

	commit := model.BatchCommit{SnapshotDate: snapshotDate}
	var summary MergeSummary
	touched := make(map[string]*model.JobRecord)
	seen := make(map[string]bool)

	now := time.Now().UTC()
	for i := range incoming {
		rec := incoming[i]
		target, kind := resolver.Resolve(&rec)

		if kind == resolve.MatchNone {
			created := rec
			resolver.Add(&created)
			touched[created.ID] = &created
			commit.Events = append(commit.Events, model.ChangeEntry{
				ID:           uuid.New().String(),
				JobID:        created.ID,
				SnapshotDate: snapshotDate,
				Event:        model.EventCreated,
				Details:      map[string]any{"company": created.Company, "title": created.Title},
				CreatedAt:    now,
			})
			summary.Created++
			if !seen[created.ID] {
				seen[created.ID] = true
				commit.MemberIDs = append(commit.MemberIDs, created.ID)
			}
			continue
		}

		res := resolve.Merge(target, &rec, snapshotDate)
		switch {
		case res.Conflict:
			summary.Conflicts++
			// A re-merge of an already-applied snapshot hits the same
			// conflict again without advancing the record; logging the
			// collision is enough then, a second changelog row is not.
			if !res.Changed {
				break
			}
			touched[target.ID] = target
			commit.Events = append(commit.Events, model.ChangeEntry{
				ID:           uuid.New().String(),
				JobID:        target.ID,
				SnapshotDate: snapshotDate,
				Event:        model.EventConflict,
				Details: map[string]any{
					"kept_company":     target.Company,
					"rejected_company": rec.Company,
				},
				CreatedAt: now,
			})
		case res.Changed:
			touched[target.ID] = target
			commit.Events = append(commit.Events, model.ChangeEntry{
				ID:           uuid.New().String(),
				JobID:        target.ID,
				SnapshotDate: snapshotDate,
				Event:        model.EventUpdated,
				Details:      map[string]any{"match": kind},
				CreatedAt:    now,
			})
			summary.Updated++
		default:
			summary.Unchanged++
		}
		if !seen[target.ID] {
			seen[target.ID] = true
			commit.MemberIDs = append(commit.MemberIDs, target.ID)
		}
	}

	// Upsert in member order for deterministic commits.
	for _, id := range commit.MemberIDs {
		if rec, ok := touched[id]; ok {
			commit.Upserts = append(commit.Upserts, *rec)
		}
	}
	return commit, summary
}
