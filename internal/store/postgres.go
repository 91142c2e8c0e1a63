package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cro-report/jobs-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	company          TEXT NOT NULL,
	title            TEXT NOT NULL,
	location         TEXT NOT NULL DEFAULT '',
	metro            TEXT NOT NULL DEFAULT '',
	comp_min         DOUBLE PRECISION,
	comp_max         DOUBLE PRECISION,
	currency         TEXT NOT NULL DEFAULT '',
	disclosed        BOOLEAN NOT NULL DEFAULT false,
	posting_date     TEXT,
	first_seen       TEXT NOT NULL,
	last_seen        TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	seniority        TEXT NOT NULL DEFAULT '',
	company_stage    TEXT NOT NULL DEFAULT '',
	industry         TEXT NOT NULL DEFAULT '',
	work_arrangement TEXT NOT NULL DEFAULT '',
	tech             BOOLEAN NOT NULL DEFAULT false,
	methodologies    JSONB NOT NULL DEFAULT '[]',
	source_batch_id  TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS changelog (
	id            TEXT PRIMARY KEY,
	job_id        TEXT NOT NULL REFERENCES jobs(id),
	snapshot_date TEXT NOT NULL,
	event         TEXT NOT NULL,
	details       JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	date         TEXT PRIMARY KEY,
	record_count INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshot_members (
	snapshot_date TEXT NOT NULL REFERENCES snapshots(date),
	job_id        TEXT NOT NULL REFERENCES jobs(id),
	PRIMARY KEY (snapshot_date, job_id)
);

CREATE TABLE IF NOT EXISTS aggregates (
	snapshot_date TEXT NOT NULL,
	seniority     TEXT NOT NULL,
	stage         TEXT NOT NULL,
	metro         TEXT NOT NULL,
	tech          BOOLEAN NOT NULL,
	sample_count  INTEGER NOT NULL,
	avg_min       DOUBLE PRECISION NOT NULL,
	avg_max       DOUBLE PRECISION NOT NULL,
	suppressed    BOOLEAN NOT NULL,
	PRIMARY KEY (snapshot_date, seniority, stage, metro, tech)
);

CREATE TABLE IF NOT EXISTS market_stats (
	snapshot_date    TEXT PRIMARY KEY,
	total_roles      INTEGER NOT NULL,
	unique_companies INTEGER NOT NULL,
	avg_max_salary   DOUBLE PRECISION NOT NULL,
	remote_pct       DOUBLE PRECISION NOT NULL,
	disclosure_rate  DOUBLE PRECISION NOT NULL,
	wow_change_pct   DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);
CREATE INDEX IF NOT EXISTS idx_jobs_last_seen ON jobs(last_seen);
CREATE INDEX IF NOT EXISTS idx_changelog_job_id ON changelog(job_id);
CREATE INDEX IF NOT EXISTS idx_changelog_snapshot ON changelog(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_members_job_id ON snapshot_members(job_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgUpsertJob = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (id) DO UPDATE SET
	company = EXCLUDED.company,
	title = EXCLUDED.title,
	location = EXCLUDED.location,
	metro = EXCLUDED.metro,
	comp_min = EXCLUDED.comp_min,
	comp_max = EXCLUDED.comp_max,
	currency = EXCLUDED.currency,
	disclosed = EXCLUDED.disclosed,
	posting_date = EXCLUDED.posting_date,
	first_seen = EXCLUDED.first_seen,
	last_seen = EXCLUDED.last_seen,
	description = EXCLUDED.description,
	seniority = EXCLUDED.seniority,
	company_stage = EXCLUDED.company_stage,
	industry = EXCLUDED.industry,
	work_arrangement = EXCLUDED.work_arrangement,
	tech = EXCLUDED.tech,
	methodologies = EXCLUDED.methodologies,
	source_batch_id = EXCLUDED.source_batch_id,
	source_url = EXCLUDED.source_url`

func pgJobArgs(rec *model.JobRecord) ([]any, error) {
	methodologies, err := json.Marshal(rec.Methodologies)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal methodologies")
	}
	var postingDate any
	if rec.PostingDate != nil {
		postingDate = rec.PostingDate.Format(model.DateFormat)
	}
	return []any{
		rec.ID, rec.Company, rec.Title, rec.Location, rec.Metro,
		rec.CompMin, rec.CompMax, rec.Currency, rec.Disclosed,
		postingDate,
		rec.FirstSeen.Format(model.DateFormat), rec.LastSeen.Format(model.DateFormat),
		rec.Description, rec.Seniority, rec.CompanyStage, rec.Industry,
		rec.WorkArrangement, rec.Tech, string(methodologies),
		rec.SourceBatchID, rec.SourceURL,
	}, nil
}

func (s *PostgresStore) LoadJobs(ctx context.Context) ([]model.JobRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load jobs")
	}
	defer rows.Close()

	var recs []model.JobRecord
	for rows.Next() {
		rec, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: load jobs iterate")
}

func (s *PostgresStore) UpsertJobs(ctx context.Context, recs []model.JobRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx)

	for i := range recs {
		args, err := pgJobArgs(&recs[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, pgUpsertJob, args...); err != nil {
			return eris.Wrapf(err, "postgres: upsert job %s", recs[i].ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit upsert")
}

func (s *PostgresStore) CommitBatch(ctx context.Context, commit model.BatchCommit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin batch")
	}
	defer tx.Rollback(ctx)

	date := commit.SnapshotDate.Format(model.DateFormat)

	for i := range commit.Upserts {
		args, err := pgJobArgs(&commit.Upserts[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, pgUpsertJob, args...); err != nil {
			return eris.Wrapf(err, "postgres: upsert job %s", commit.Upserts[i].ID)
		}
	}

	for _, ev := range commit.Events {
		var details any
		if ev.Details != nil {
			b, err := json.Marshal(ev.Details)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal event details")
			}
			details = string(b)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO changelog (id, job_id, snapshot_date, event, details, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.ID, ev.JobID, ev.SnapshotDate.Format(model.DateFormat), ev.Event, details, ev.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert changelog for job %s", ev.JobID)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (date, created_at) VALUES ($1, $2) ON CONFLICT (date) DO NOTHING`,
		date, time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "postgres: insert snapshot %s", date)
	}
	for _, id := range commit.MemberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO snapshot_members (snapshot_date, job_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			date, id,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert member %s", id)
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE snapshots SET record_count =
		   (SELECT COUNT(*) FROM snapshot_members WHERE snapshot_date = $1)
		 WHERE date = $2`,
		date, date,
	); err != nil {
		return eris.Wrapf(err, "postgres: update snapshot count %s", date)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit batch")
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, record_count, created_at FROM snapshots ORDER BY date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var date string
		if err := rows.Scan(&date, &snap.RecordCount, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snap.Date, err = time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse snapshot date %q", date)
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) SnapshotMembers(ctx context.Context, date time.Time) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id FROM snapshot_members WHERE snapshot_date = $1`,
		date.Format(model.DateFormat))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: snapshot members")
	}
	defer rows.Close()

	members := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan member")
		}
		members[id] = true
	}
	return members, eris.Wrap(rows.Err(), "postgres: snapshot members iterate")
}

func (s *PostgresStore) SaveAggregates(ctx context.Context, buckets []model.AggregateBucket) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin aggregates")
	}
	defer tx.Rollback(ctx)

	for _, b := range buckets {
		_, err := tx.Exec(ctx,
			`INSERT INTO aggregates (snapshot_date, seniority, stage, metro, tech, sample_count, avg_min, avg_max, suppressed)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (snapshot_date, seniority, stage, metro, tech) DO UPDATE SET
				sample_count = EXCLUDED.sample_count,
				avg_min = EXCLUDED.avg_min,
				avg_max = EXCLUDED.avg_max,
				suppressed = EXCLUDED.suppressed`,
			b.SnapshotDate.Format(model.DateFormat),
			b.Key.Seniority, b.Key.Stage, b.Key.Metro, b.Key.Tech,
			b.SampleCount, b.AvgMin, b.AvgMax, b.Suppressed,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: upsert aggregate")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit aggregates")
}

func (s *PostgresStore) ListAggregates(ctx context.Context, date time.Time) ([]model.AggregateBucket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+aggregateColumns+` FROM aggregates WHERE snapshot_date = $1
		 ORDER BY seniority, stage, metro, tech`,
		date.Format(model.DateFormat))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list aggregates")
	}
	defer rows.Close()
	return collectPgAggregates(rows)
}

func (s *PostgresStore) AggregatesBySnapshot(ctx context.Context) (map[time.Time][]model.AggregateBucket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+aggregateColumns+` FROM aggregates
		 ORDER BY snapshot_date, seniority, stage, metro, tech`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: aggregates by snapshot")
	}
	defer rows.Close()

	buckets, err := collectPgAggregates(rows)
	if err != nil {
		return nil, err
	}
	bySnapshot := make(map[time.Time][]model.AggregateBucket)
	for _, b := range buckets {
		bySnapshot[b.SnapshotDate] = append(bySnapshot[b.SnapshotDate], b)
	}
	return bySnapshot, nil
}

func (s *PostgresStore) SaveMarketStats(ctx context.Context, stats model.MarketStats) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_stats (snapshot_date, total_roles, unique_companies, avg_max_salary, remote_pct, disclosure_rate, wow_change_pct)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (snapshot_date) DO UPDATE SET
			total_roles = EXCLUDED.total_roles,
			unique_companies = EXCLUDED.unique_companies,
			avg_max_salary = EXCLUDED.avg_max_salary,
			remote_pct = EXCLUDED.remote_pct,
			disclosure_rate = EXCLUDED.disclosure_rate,
			wow_change_pct = EXCLUDED.wow_change_pct`,
		stats.Date.Format(model.DateFormat), stats.TotalRoles, stats.UniqueCompanies,
		stats.AvgMaxSalary, stats.RemotePct, stats.DisclosureRate, stats.WoWChangePct,
	)
	return eris.Wrap(err, "postgres: save market stats")
}

func (s *PostgresStore) ListMarketStats(ctx context.Context) ([]model.MarketStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT snapshot_date, total_roles, unique_companies, avg_max_salary, remote_pct, disclosure_rate, wow_change_pct
		 FROM market_stats ORDER BY snapshot_date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list market stats")
	}
	defer rows.Close()

	var out []model.MarketStats
	for rows.Next() {
		var st model.MarketStats
		var date string
		if err := rows.Scan(&date, &st.TotalRoles, &st.UniqueCompanies,
			&st.AvgMaxSalary, &st.RemotePct, &st.DisclosureRate, &st.WoWChangePct); err != nil {
			return nil, eris.Wrap(err, "postgres: scan market stats")
		}
		st.Date, err = time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse market stats date %q", date)
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list market stats iterate")
}

func (s *PostgresStore) Changelog(ctx context.Context, limit int) ([]model.ChangeEntry, error) {
	query := `SELECT id, job_id, snapshot_date, event, details, created_at FROM changelog
	          ORDER BY snapshot_date DESC, created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: changelog")
	}
	defer rows.Close()

	var entries []model.ChangeEntry
	for rows.Next() {
		var e model.ChangeEntry
		var date string
		var details []byte
		if err := rows.Scan(&e.ID, &e.JobID, &date, &e.Event, &details, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan changelog")
		}
		e.SnapshotDate, err = time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse changelog date %q", date)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal changelog details")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: changelog iterate")
}

func (s *PostgresStore) Status(ctx context.Context) (*Status, error) {
	var st Status
	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM jobs WHERE disclosed),
			(SELECT COUNT(*) FROM snapshots),
			(SELECT COUNT(*) FROM changelog)`)
	if err := row.Scan(&st.Records, &st.Disclosed, &st.Snapshots, &st.ChangelogEntries); err != nil {
		return nil, eris.Wrap(err, "postgres: status")
	}
	return &st, nil
}

func scanPgJob(row scannable) (*model.JobRecord, error) {
	var rec model.JobRecord
	var postingDate *string
	var firstSeen, lastSeen string
	var methodologies []byte

	err := row.Scan(&rec.ID, &rec.Company, &rec.Title, &rec.Location, &rec.Metro,
		&rec.CompMin, &rec.CompMax, &rec.Currency, &rec.Disclosed, &postingDate,
		&firstSeen, &lastSeen, &rec.Description, &rec.Seniority,
		&rec.CompanyStage, &rec.Industry, &rec.WorkArrangement, &rec.Tech,
		&methodologies, &rec.SourceBatchID, &rec.SourceURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}

	if postingDate != nil {
		t, err := time.Parse(model.DateFormat, *postingDate)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse posting date %q", *postingDate)
		}
		rec.PostingDate = &t
	}
	if rec.FirstSeen, err = time.Parse(model.DateFormat, firstSeen); err != nil {
		return nil, eris.Wrapf(err, "postgres: parse first_seen %q", firstSeen)
	}
	if rec.LastSeen, err = time.Parse(model.DateFormat, lastSeen); err != nil {
		return nil, eris.Wrapf(err, "postgres: parse last_seen %q", lastSeen)
	}
	if err := json.Unmarshal(methodologies, &rec.Methodologies); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal methodologies")
	}
	return &rec, nil
}

func collectPgAggregates(rows pgx.Rows) ([]model.AggregateBucket, error) {
	var buckets []model.AggregateBucket
	for rows.Next() {
		var b model.AggregateBucket
		var date string
		if err := rows.Scan(&date, &b.Key.Seniority, &b.Key.Stage, &b.Key.Metro,
			&b.Key.Tech, &b.SampleCount, &b.AvgMin, &b.AvgMax, &b.Suppressed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan aggregate")
		}
		t, err := time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse aggregate date %q", date)
		}
		b.SnapshotDate = t
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "postgres: aggregates iterate")
}
