package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cro-report/jobs-cli/internal/config"
	"github.com/cro-report/jobs-cli/internal/enrich"
	"github.com/cro-report/jobs-cli/internal/model"
	"github.com/cro-report/jobs-cli/internal/store"
)

func day(s string) time.Time {
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testConfig() *config.Config {
	return &config.Config{
		Ingest:    config.IngestConfig{MaxRejectFraction: 0.5},
		Resolve:   config.ResolveConfig{SimilarityThreshold: 0.6},
		Pipeline:  config.PipelineConfig{ClassifyWorkers: 4},
		Lifecycle: config.LifecycleConfig{RetentionDays: 14, RetentionSnapshots: 2, SubstituteCount: 5},
		Aggregate: config.AggregateConfig{MinSample: 3, TrendTopN: 5, TopRoles: 5},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, store.Store) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	tables, err := enrich.LoadTables("")
	require.NoError(t, err)

	return New(testConfig(), st, tables), st
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const csvHeader = "company,title,location,description,posting_date,salary_text,source_url\n"

// A posting appears without salary, then reappears a week later with one:
// a single record whose disclosure upgrades in place.
func TestRun_RepostWithSalaryUpgradesRecord(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	week1 := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",Lead our sales team.,2026-01-03,,https://jobs.test/1`+"\n")
	res1, err := p.Run(ctx, week1, day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res1.Merge.Created)

	week2 := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",Lead our sales team.,2026-01-03,"$150,000 - $200,000 a year",https://jobs.test/1`+"\n")
	res2, err := p.Run(ctx, week2, day("2026-01-12"))
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Merge.Created)
	assert.Equal(t, 1, res2.Merge.Updated)

	jobs, err := st.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	rec := jobs[0]
	assert.True(t, rec.Disclosed)
	require.NotNil(t, rec.CompMin)
	assert.Equal(t, 150000.0, *rec.CompMin)
	assert.Equal(t, day("2026-01-05"), rec.FirstSeen)
	assert.Equal(t, day("2026-01-12"), rec.LastSeen)

	entries, err := st.Changelog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EventUpdated, entries[0].Event)
	assert.Equal(t, model.EventCreated, entries[1].Event)
}

// Re-running the same batch for the same date changes nothing: no new
// records, no new changelog entries, identical snapshot membership.
func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	batch := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",Lead sales.,2026-01-03,"$150K - $200K",https://jobs.test/1`+"\n"+
		`Globex,Chief Revenue Officer,Remote,Own revenue.,2026-01-02,"$250,000 - $300,000 a year",https://jobs.test/2`+"\n")

	res1, err := p.Run(ctx, batch, day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 2, res1.Merge.Created)

	res2, err := p.Run(ctx, batch, day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Merge.Created)
	assert.Equal(t, 0, res2.Merge.Updated)
	assert.Equal(t, 2, res2.Merge.Unchanged)

	entries, err := st.Changelog(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	members, err := st.SnapshotMembers(ctx, day("2026-01-05"))
	require.NoError(t, err)
	assert.Len(t, members, 2)

	snaps, err := st.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2, snaps[0].RecordCount)
}

// The gate drops individual contributor and non-sales roles before any
// store write.
func TestRun_GateFiltersNonQualifyingRoles(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	batch := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",,,,`+"\n"+
		`Acme,Account Executive,"Austin, TX",,,,`+"\n"+
		`Acme,VP of Engineering,"Austin, TX",,,,`+"\n")

	res, err := p.Run(ctx, batch, day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Gated)
	assert.Equal(t, 1, res.Merge.Created)

	jobs, err := st.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "VP of Sales", jobs[0].Title)
}

// The same posting scraped with a slightly different title folds into the
// existing record via the similarity pass.
func TestRun_SimilarTitleResolvesToExistingRecord(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	week1 := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",desc,,,`+"\n")
	_, err := p.Run(ctx, week1, day("2026-01-05"))
	require.NoError(t, err)

	week2 := writeCSV(t, csvHeader+
		`Acme,VP Sales,"Austin, TX",desc,,,`+"\n")
	res, err := p.Run(ctx, week2, day("2026-01-12"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Merge.Created)
	assert.Equal(t, 1, res.Merge.Updated)

	jobs, err := st.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

// A batch whose reject fraction exceeds the ceiling aborts before writing.
func TestRun_BrokenBatchAborts(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	batch := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",,,,`+"\n"+
		",,,,,,\n"+
		",,,,,,\n")

	_, err := p.Run(ctx, batch, day("2026-01-05"))
	require.Error(t, err)

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Records)
	assert.Equal(t, 0, status.Snapshots)
}

func TestRun_AggregatesPersisted(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	batch := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",saas,,"$100,000 - $150,000 a year",`+"\n"+
		`Globex,VP of Sales,"Austin, TX",saas,,"$120,000 - $160,000 a year",`+"\n")

	res, err := p.Run(ctx, batch, day("2026-01-05"))
	require.NoError(t, err)
	require.NotNil(t, res.Aggregation)

	buckets, err := st.ListAggregates(ctx, day("2026-01-05"))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].SampleCount)
	assert.Equal(t, 110000.0, buckets[0].AvgMin)
	assert.Equal(t, 155000.0, buckets[0].AvgMax)
	// Below min_sample of 3: stored but flagged.
	assert.True(t, buckets[0].Suppressed)
}

// Each rejected row leaves a trace in the log, not just in the run result.
func TestRun_LogsRejectedRows(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t)

	core, logs := observer.New(zap.WarnLevel)
	prev := zap.L()
	zap.ReplaceGlobals(zap.New(core))
	defer zap.ReplaceGlobals(prev)

	batch := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",,,,`+"\n"+
		`Globex,SVP of Sales,"Denver, CO",,,,`+"\n"+
		",,,,,,\n")

	res, err := p.Run(ctx, batch, day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)

	warned := logs.FilterMessage("pipeline: rejected row").All()
	require.Len(t, warned, 1)
	fields := warned[0].ContextMap()
	assert.Equal(t, int64(4), fields["line"])
	assert.Contains(t, fields["reason"], "no identity")
}

// The market-stats salary figure is the mean comp_max over Live disclosed
// records, not the bucket-level trend headline.
func TestRun_MarketStatsAverageOverLiveRecords(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	batch := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",saas,,"$100,000 - $150,000 a year",`+"\n"+
		`Globex,VP of Sales,"Austin, TX",saas,,"$120,000 - $160,000 a year",`+"\n"+
		`Initech,Chief Revenue Officer,"San Francisco, CA",saas,,"$250,000 - $300,000 a year",`+"\n")

	res, err := p.Run(ctx, batch, day("2026-01-05"))
	require.NoError(t, err)
	require.NotNil(t, res.Aggregation)

	stats := res.Aggregation.Stats
	assert.Equal(t, 3, stats.TotalRoles)
	// (150000 + 160000 + 300000) / 3, rounded. The two-bucket trend
	// headline would be 227500.
	assert.Equal(t, 203333.0, stats.AvgMaxSalary)

	saved, err := st.ListMarketStats(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, stats, saved[0])
}

func TestRevalidate_AppliesNewRules(t *testing.T) {
	ctx := context.Background()
	p, st := newTestPipeline(t)

	batch := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Boise, ID",,,,`+"\n")
	_, err := p.Run(ctx, batch, day("2026-01-05"))
	require.NoError(t, err)

	jobs, err := st.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Other", jobs[0].Metro)

	// Second pass with identical rules is a no-op.
	changed, err := p.Revalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	// Teach the metro table about Boise and revalidate.
	p.tables.Metro.Rules = append(p.tables.Metro.Rules,
		enrich.Rule{Label: "Boise", Any: []string{"boise"}})
	changed, err = p.Revalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	jobs, err = st.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Boise", jobs[0].Metro)
}

func TestDeriveLifecycleAndSubstitutes(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t)

	week1 := writeCSV(t, csvHeader+
		`Acme,VP of Sales,"Austin, TX",,,,`+"\n"+
		`Acme,SVP of Sales,"Austin, TX",,,"$200,000 - $250,000 a year",`+"\n")
	_, err := p.Run(ctx, week1, day("2026-01-05"))
	require.NoError(t, err)

	// Three weeks on, only the SVP posting is still in the scrape. The
	// days window has elapsed but the VP posting is in a retained snapshot.
	week4 := writeCSV(t, csvHeader+
		`Acme,SVP of Sales,"Austin, TX",,,"$200,000 - $250,000 a year",`+"\n")
	_, err = p.Run(ctx, week4, day("2026-01-26"))
	require.NoError(t, err)

	records, states, err := p.DeriveLifecycle(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	var vpID, svpID string
	for _, r := range records {
		if r.Title == "VP of Sales" {
			vpID = r.ID
		} else {
			svpID = r.ID
		}
	}
	assert.Equal(t, model.StateStale, states[vpID])
	assert.Equal(t, model.StateLive, states[svpID])

	subs := p.Substitutes(records, states)
	assert.Equal(t, []string{svpID}, subs[vpID])
}
