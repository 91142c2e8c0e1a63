package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cro-report/jobs-cli/internal/aggregate"
	"github.com/cro-report/jobs-cli/internal/config"
	"github.com/cro-report/jobs-cli/internal/enrich"
	"github.com/cro-report/jobs-cli/internal/ingest"
	"github.com/cro-report/jobs-cli/internal/lifecycle"
	"github.com/cro-report/jobs-cli/internal/model"
	"github.com/cro-report/jobs-cli/internal/store"
)

// Pipeline orchestrates one weekly batch: scan, gate, classify, merge,
// commit, then lifecycle derivation and aggregation.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	tables *enrich.Tables
}

// New creates a Pipeline over an opened store and loaded rule tables.
func New(cfg *config.Config, st store.Store, tables *enrich.Tables) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, tables: tables}
}

// RunResult summarizes one ingestion run.
type RunResult struct {
	SnapshotDate time.Time        `json:"snapshot_date"`
	BatchID      string           `json:"batch_id"`
	Scanned      int              `json:"scanned"`
	Rejected     int              `json:"rejected"`
	Rejects      []ingest.Reject  `json:"rejects,omitempty"`
	Gated        int              `json:"gated_out"`
	Merge        MergeSummary     `json:"merge"`
	Aggregation  *AggregateResult `json:"aggregation,omitempty"`
}

// Run ingests one weekly scrape export dated snapshotDate and commits the
// batch. A file whose reject fraction exceeds the configured ceiling is
// treated as a broken scrape and aborts before anything is written.
func (p *Pipeline) Run(ctx context.Context, csvPath string, snapshotDate time.Time) (*RunResult, error) {
	log := zap.L().With(zap.String("file", csvPath), zap.String("snapshot", snapshotDate.Format(model.DateFormat)))

	result := &RunResult{
		SnapshotDate: snapshotDate,
		BatchID:      uuid.New().String(),
	}

	sc, err := ingest.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	var candidates []model.JobRecord
	for sc.Next() {
		result.Scanned++
		rec, rej := ingest.BuildRecord(sc.Row(), snapshotDate, result.BatchID)
		if rej != nil {
			result.Rejected++
			result.Rejects = append(result.Rejects, *rej)
			log.Warn("pipeline: rejected row",
				zap.Int("line", rej.Line), zap.String("reason", rej.Reason))
			continue
		}
		candidates = append(candidates, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	log.Info("pipeline: scanned batch",
		zap.Int("rows", result.Scanned), zap.Int("rejected", result.Rejected))

	if result.Scanned > 0 {
		frac := float64(result.Rejected) / float64(result.Scanned)
		if frac > p.cfg.Ingest.MaxRejectFraction {
			return nil, eris.Errorf("pipeline: %.0f%% of %d rows rejected, batch looks broken, aborting",
				frac*100, result.Scanned)
		}
	}

	var gated []model.JobRecord
	for i := range candidates {
		if p.tables.GateVocabulary.IsExecutiveSalesRole(candidates[i].Title) {
			gated = append(gated, candidates[i])
		}
	}
	result.Gated = len(candidates) - len(gated)

	if err := p.classify(ctx, gated); err != nil {
		return nil, err
	}

	existing, err := p.store.LoadJobs(ctx)
	if err != nil {
		return nil, err
	}
	commit, summary := mergeBatch(existing, gated, snapshotDate, p.cfg.Resolve.SimilarityThreshold)
	result.Merge = summary

	for i := range commit.Upserts {
		if err := commit.Upserts[i].Validate(); err != nil {
			return nil, eris.Wrap(err, "pipeline: merged record invalid")
		}
	}

	if err := p.store.CommitBatch(ctx, commit); err != nil {
		return nil, err
	}
	log.Info("pipeline: committed batch",
		zap.Int("created", summary.Created), zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged), zap.Int("conflicts", summary.Conflicts),
		zap.Int("members", len(commit.MemberIDs)))

	agg, err := p.Aggregate(ctx, snapshotDate)
	if err != nil {
		return nil, err
	}
	result.Aggregation = agg
	return result, nil
}

// classify runs rule classification over the batch with a bounded worker
// pool. Results are written index-addressed so order never depends on
// scheduling.
func (p *Pipeline) classify(ctx context.Context, recs []model.JobRecord) error {
	workers := p.cfg.Pipeline.ClassifyWorkers
	if workers <= 0 {
		workers = 1
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range recs {
		i := i
		g.Go(func() error {
			enrich.Apply(&recs[i], p.tables)
			return nil
		})
	}
	return g.Wait()
}

// AggregateResult is the published output of one aggregation pass.
type AggregateResult struct {
	Date       time.Time               `json:"date"`
	Buckets    []model.AggregateBucket `json:"buckets"`
	Suppressed int                     `json:"suppressed"`
	Stats      model.MarketStats       `json:"stats"`
	Trend      []aggregate.TrendPoint  `json:"trend,omitempty"`
	TopRoles   []*model.JobRecord      `json:"top_roles,omitempty"`
}

// Aggregate derives lifecycle states as of the given snapshot (the latest
// one when date is zero), recomputes compensation buckets and market
// stats, and persists both. Suppressed buckets are stored but not
// published.
func (p *Pipeline) Aggregate(ctx context.Context, date time.Time) (*AggregateResult, error) {
	snapshots, err := p.store.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, eris.New("pipeline: no snapshots ingested yet")
	}
	if date.IsZero() {
		date = snapshots[len(snapshots)-1].Date
	}
	idx := -1
	for i, snap := range snapshots {
		if snap.Date.Equal(date) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, eris.Errorf("pipeline: no snapshot for %s", date.Format(model.DateFormat))
	}

	jobs, err := p.store.LoadJobs(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*model.JobRecord, len(jobs))
	for i := range jobs {
		records[i] = &jobs[i]
	}

	states, err := lifecycle.Derive(records, snapshots[:idx+1],
		func(d time.Time) (map[string]bool, error) { return p.store.SnapshotMembers(ctx, d) },
		lifecycle.Window{Days: p.cfg.Lifecycle.RetentionDays, Snapshots: p.cfg.Lifecycle.RetentionSnapshots})
	if err != nil {
		return nil, err
	}

	buckets := aggregate.Compute(records, states, date, p.cfg.Aggregate.MinSample)
	if err := p.store.SaveAggregates(ctx, buckets); err != nil {
		return nil, err
	}

	res := &AggregateResult{Date: date, Buckets: buckets}
	for _, b := range buckets {
		if b.Suppressed {
			res.Suppressed++
		}
	}

	priorLive := 0
	if idx > 0 {
		priorLive = snapshots[idx-1].RecordCount
	}
	res.Stats = aggregate.Stats(records, states, date, priorLive)
	if err := p.store.SaveMarketStats(ctx, res.Stats); err != nil {
		return nil, err
	}
	res.TopRoles = aggregate.TopRoles(records, states, p.cfg.Aggregate.TopRoles)

	// The trend headline is a bucket-level metric; market stats carry
	// their own record-level average.
	if headline, ok := aggregate.Headline(buckets, p.cfg.Aggregate.TrendTopN); ok {
		bySnapshot, err := p.store.AggregatesBySnapshot(ctx)
		if err != nil {
			return nil, err
		}
		delete(bySnapshot, date)
		res.Trend = aggregate.Trend(headline, bySnapshot, p.cfg.Aggregate.TrendTopN)
	}

	zap.L().Info("pipeline: aggregated snapshot",
		zap.String("snapshot", date.Format(model.DateFormat)),
		zap.Int("buckets", len(res.Buckets)), zap.Int("suppressed", res.Suppressed))
	return res, nil
}

// DeriveLifecycle loads the master store and derives each record's state
// as of the latest snapshot.
func (p *Pipeline) DeriveLifecycle(ctx context.Context) ([]*model.JobRecord, map[string]model.LifecycleState, error) {
	snapshots, err := p.store.ListSnapshots(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil, eris.New("pipeline: no snapshots ingested yet")
	}

	jobs, err := p.store.LoadJobs(ctx)
	if err != nil {
		return nil, nil, err
	}
	records := make([]*model.JobRecord, len(jobs))
	for i := range jobs {
		records[i] = &jobs[i]
	}

	states, err := lifecycle.Derive(records, snapshots,
		func(d time.Time) (map[string]bool, error) { return p.store.SnapshotMembers(ctx, d) },
		lifecycle.Window{Days: p.cfg.Lifecycle.RetentionDays, Snapshots: p.cfg.Lifecycle.RetentionSnapshots})
	if err != nil {
		return nil, nil, err
	}
	return records, states, nil
}

// Substitutes suggests replacement Live postings for every Stale record.
func (p *Pipeline) Substitutes(records []*model.JobRecord, states map[string]model.LifecycleState) map[string][]string {
	var live []*model.JobRecord
	for _, rec := range records {
		if states[rec.ID] == model.StateLive {
			live = append(live, rec)
		}
	}

	subs := make(map[string][]string)
	for _, rec := range records {
		if states[rec.ID] != model.StateStale {
			continue
		}
		if ids := lifecycle.Substitutes(rec, live, p.cfg.Lifecycle.SubstituteCount); len(ids) > 0 {
			subs[rec.ID] = ids
		}
	}
	return subs
}

// Revalidate re-runs classification over every stored record with the
// current rule tables and persists the ones whose labels changed.
// Identity, compensation and observation dates are never touched.
func (p *Pipeline) Revalidate(ctx context.Context) (int, error) {
	jobs, err := p.store.LoadJobs(ctx)
	if err != nil {
		return 0, err
	}

	var changed []model.JobRecord
	for i := range jobs {
		before := jobs[i]
		enrich.Apply(&jobs[i], p.tables)
		if !classificationsEqual(&before, &jobs[i]) {
			changed = append(changed, jobs[i])
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := p.store.UpsertJobs(ctx, changed); err != nil {
		return 0, err
	}
	zap.L().Info("pipeline: revalidated records", zap.Int("changed", len(changed)))
	return len(changed), nil
}

func classificationsEqual(a, b *model.JobRecord) bool {
	if a.Seniority != b.Seniority || a.CompanyStage != b.CompanyStage ||
		a.Industry != b.Industry || a.WorkArrangement != b.WorkArrangement ||
		a.Metro != b.Metro || a.Tech != b.Tech || len(a.Methodologies) != len(b.Methodologies) {
		return false
	}
	for i := range a.Methodologies {
		if a.Methodologies[i] != b.Methodologies[i] {
			return false
		}
	}
	return true
}
