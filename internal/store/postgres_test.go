package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cro-report/jobs-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS jobs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT date, record_count, created_at FROM snapshots ORDER BY date`).
		WillReturnRows(pgxmock.NewRows([]string{"date", "record_count", "created_at"}).
			AddRow("2026-01-05", 2, created).
			AddRow("2026-01-12", 3, created.AddDate(0, 0, 7)))

	snaps, err := s.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, day("2026-01-05"), snaps[0].Date)
	assert.Equal(t, 2, snaps[0].RecordCount)
	assert.Equal(t, 3, snaps[1].RecordCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SnapshotMembers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT job_id FROM snapshot_members WHERE snapshot_date = \$1`).
		WithArgs("2026-01-05").
		WillReturnRows(pgxmock.NewRows([]string{"job_id"}).AddRow("j1").AddRow("j2"))

	members, err := s.SnapshotMembers(context.Background(), day("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"j1": true, "j2": true}, members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertJobs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), "Acme", "VP of Sales", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpsertJobs(context.Background(), []model.JobRecord{sampleJob("j1")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	d := day("2026-01-05")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO changelog`).
		WithArgs("e1", "j1", "2026-01-05", model.EventCreated, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs("2026-01-05", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO snapshot_members`).
		WithArgs("2026-01-05", "j1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE snapshots SET record_count`).
		WithArgs("2026-01-05", "2026-01-05").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	commit := model.BatchCommit{
		SnapshotDate: d,
		Upserts:      []model.JobRecord{sampleJob("j1")},
		Events: []model.ChangeEntry{
			{ID: "e1", JobID: "j1", SnapshotDate: d, Event: model.EventCreated,
				Details: map[string]any{"company": "Acme"}, CreatedAt: time.Now().UTC()},
		},
		MemberIDs: []string{"j1"},
	}
	require.NoError(t, s.CommitBatch(context.Background(), commit))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Status(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"records", "disclosed", "snapshots", "changelog"}).
			AddRow(12, 8, 3, 20))

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Status{Records: 12, Disclosed: 8, Snapshots: 3, ChangelogEntries: 20}, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveMarketStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO market_stats`).
		WithArgs("2026-01-05", 42, 30, 185000.0, 33.3, 66.7, -2.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	stats := model.MarketStats{
		Date:       day("2026-01-05"),
		TotalRoles: 42, WoWChangePct: -2.5, RemotePct: 33.3,
		DisclosureRate: 66.7, UniqueCompanies: 30, AvgMaxSalary: 185000,
	}
	require.NoError(t, s.SaveMarketStats(context.Background(), stats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMarketStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM market_stats ORDER BY snapshot_date`).
		WillReturnRows(pgxmock.NewRows([]string{
			"snapshot_date", "total_roles", "unique_companies", "avg_max_salary",
			"remote_pct", "disclosure_rate", "wow_change_pct",
		}).AddRow("2026-01-05", 40, 28, 190000.0, 30.0, 60.0, 0.0).
			AddRow("2026-01-12", 42, 30, 185000.0, 33.3, 66.7, 5.0))

	got, err := s.ListMarketStats(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day("2026-01-05"), got[0].Date)
	assert.Equal(t, 40, got[0].TotalRoles)
	assert.Equal(t, 185000.0, got[1].AvgMaxSalary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAggregates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO aggregates`).
		WithArgs("2026-01-05", "VP", "Series B/C", "Austin", true, 4, 110000.0, 155000.0, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	buckets := []model.AggregateBucket{{
		SnapshotDate: day("2026-01-05"),
		Key:          model.BucketKey{Seniority: "VP", Stage: "Series B/C", Metro: "Austin", Tech: true},
		SampleCount:  4, AvgMin: 110000, AvgMax: 155000,
	}}
	require.NoError(t, s.SaveAggregates(context.Background(), buckets))
	assert.NoError(t, mock.ExpectationsWereMet())
}
