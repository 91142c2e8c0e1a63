package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// DateFormat is the canonical day format used in batch files and store keys.
const DateFormat = "2006-01-02"

// LifecycleState is derived per record per run from snapshot membership
// and elapsed time. It is never stored as ground truth.
type LifecycleState string

const (
	StateLive     LifecycleState = "live"
	StateStale    LifecycleState = "stale"
	StateArchived LifecycleState = "archived"
)

// JobRecord is one posting in the master store.
type JobRecord struct {
	ID              string     `json:"id"`
	Company         string     `json:"company"`
	Title           string     `json:"title"`
	Location        string     `json:"location"`
	Metro           string     `json:"metro"`
	CompMin         *float64   `json:"compensation_min,omitempty"`
	CompMax         *float64   `json:"compensation_max,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Disclosed       bool       `json:"disclosed"`
	PostingDate     *time.Time `json:"posting_date,omitempty"`
	FirstSeen       time.Time  `json:"first_seen_date"`
	LastSeen        time.Time  `json:"last_seen_date"`
	Description     string     `json:"description_text,omitempty"`
	Seniority       string     `json:"seniority_tier"`
	CompanyStage    string     `json:"company_stage"`
	Industry        string     `json:"industry"`
	WorkArrangement string     `json:"work_arrangement"`
	Tech            bool       `json:"is_tech"`
	Methodologies   []string   `json:"methodologies,omitempty"`
	SourceBatchID   string     `json:"source_batch_id"`
	SourceURL       string     `json:"source_url,omitempty"`
}

// Validate checks the record invariants: disclosed ranges must be ordered
// and observation dates must be monotone.
func (r *JobRecord) Validate() error {
	if r.ID == "" {
		return eris.New("job: empty id")
	}
	if r.Disclosed {
		if r.CompMin == nil || r.CompMax == nil {
			return eris.Errorf("job %s: disclosed without compensation range", r.ID)
		}
		if *r.CompMin > *r.CompMax {
			return eris.Errorf("job %s: compensation_min %.0f > compensation_max %.0f", r.ID, *r.CompMin, *r.CompMax)
		}
	}
	if r.FirstSeen.After(r.LastSeen) {
		return eris.Errorf("job %s: first_seen %s after last_seen %s",
			r.ID, r.FirstSeen.Format(DateFormat), r.LastSeen.Format(DateFormat))
	}
	return nil
}

// Snapshot is one weekly ingestion batch: a date and the ids observed in
// it. Snapshots are immutable after creation.
type Snapshot struct {
	Date        time.Time `json:"date"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Change events recorded in the append-only changelog.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventConflict = "conflict"
)

// ChangeEntry is one row in the append-only changelog: a single merge
// event for a single record.
type ChangeEntry struct {
	ID           string         `json:"id"`
	JobID        string         `json:"job_id"`
	SnapshotDate time.Time      `json:"snapshot_date"`
	Event        string         `json:"event"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// BucketKey is the grouping tuple for compensation aggregates.
type BucketKey struct {
	Seniority string `json:"seniority"`
	Stage     string `json:"stage"`
	Metro     string `json:"metro"`
	Tech      bool   `json:"tech"`
}

// AggregateBucket holds compensation statistics for one bucket in one
// snapshot. Suppressed buckets stay in the store for trend continuity but
// are excluded from published output.
type AggregateBucket struct {
	SnapshotDate time.Time `json:"snapshot_date"`
	Key          BucketKey `json:"key"`
	SampleCount  int       `json:"sample_count"`
	AvgMin       float64   `json:"avg_min"`
	AvgMax       float64   `json:"avg_max"`
	Suppressed   bool      `json:"suppressed"`
}

// MarketStats is the per-snapshot headline summary consumed by the
// rendering collaborator.
type MarketStats struct {
	Date            time.Time `json:"date"`
	TotalRoles      int       `json:"total_roles"`
	WoWChangePct    float64   `json:"wow_change_pct"`
	RemotePct       float64   `json:"remote_pct"`
	DisclosureRate  float64   `json:"disclosure_rate_pct"`
	UniqueCompanies int       `json:"unique_companies"`
	AvgMaxSalary    float64   `json:"avg_max_salary"`
}

// BatchCommit carries everything a single batch merge writes to the
// store. The store applies it in one transaction or not at all.
type BatchCommit struct {
	SnapshotDate time.Time
	Upserts      []JobRecord
	Events       []ChangeEntry
	MemberIDs    []string
}
