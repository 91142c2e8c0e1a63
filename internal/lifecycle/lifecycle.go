// Package lifecycle derives each record's publication state from snapshot
// membership and recency. State is computed fresh every run; nothing here
// is persisted as ground truth.
package lifecycle

import (
	"time"

	"github.com/cro-report/jobs-cli/internal/model"
)

// Window is the Stale→Archived retention window. A record absent from
// the latest snapshot stays Stale while last_seen is within Days of the
// latest snapshot date, or while it appears in any of the Snapshots most
// recent prior snapshots; beyond both it is Archived.
type Window struct {
	Days      int
	Snapshots int
}

// State derives one record's lifecycle state. latestMembers is the id set
// of the most recent snapshot; recentMembers the union of the prior
// Window.Snapshots snapshots; latestDate the most recent snapshot's date.
func State(rec *model.JobRecord, latestMembers, recentMembers map[string]bool, latestDate time.Time, w Window) model.LifecycleState {
	if latestMembers[rec.ID] {
		return model.StateLive
	}
	if w.Days > 0 {
		if latestDate.Sub(rec.LastSeen) <= time.Duration(w.Days)*24*time.Hour {
			return model.StateStale
		}
	}
	if w.Snapshots > 0 && recentMembers[rec.ID] {
		return model.StateStale
	}
	return model.StateArchived
}

// Derive computes states for every record. snapshots must be sorted by
// date ascending; membership returns the id set of one snapshot.
func Derive(records []*model.JobRecord, snapshots []model.Snapshot, membership func(time.Time) (map[string]bool, error), w Window) (map[string]model.LifecycleState, error) {
	states := make(map[string]model.LifecycleState, len(records))
	if len(snapshots) == 0 {
		for _, r := range records {
			states[r.ID] = model.StateArchived
		}
		return states, nil
	}

	latest := snapshots[len(snapshots)-1]
	latestMembers, err := membership(latest.Date)
	if err != nil {
		return nil, err
	}

	recentMembers := make(map[string]bool)
	if w.Snapshots > 0 {
		from := len(snapshots) - 1 - w.Snapshots
		if from < 0 {
			from = 0
		}
		for _, s := range snapshots[from : len(snapshots)-1] {
			m, err := membership(s.Date)
			if err != nil {
				return nil, err
			}
			for id := range m {
				recentMembers[id] = true
			}
		}
	}

	for _, r := range records {
		states[r.ID] = State(r, latestMembers, recentMembers, latest.Date, w)
	}
	return states, nil
}
