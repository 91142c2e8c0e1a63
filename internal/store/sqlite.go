package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cro-report/jobs-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	company          TEXT NOT NULL,
	title            TEXT NOT NULL,
	location         TEXT NOT NULL DEFAULT '',
	metro            TEXT NOT NULL DEFAULT '',
	comp_min         REAL,
	comp_max         REAL,
	currency         TEXT NOT NULL DEFAULT '',
	disclosed        INTEGER NOT NULL DEFAULT 0,
	posting_date     TEXT,
	first_seen       TEXT NOT NULL,
	last_seen        TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	seniority        TEXT NOT NULL DEFAULT '',
	company_stage    TEXT NOT NULL DEFAULT '',
	industry         TEXT NOT NULL DEFAULT '',
	work_arrangement TEXT NOT NULL DEFAULT '',
	tech             INTEGER NOT NULL DEFAULT 0,
	methodologies    TEXT NOT NULL DEFAULT '[]',
	source_batch_id  TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS changelog (
	id            TEXT PRIMARY KEY,
	job_id        TEXT NOT NULL REFERENCES jobs(id),
	snapshot_date TEXT NOT NULL,
	event         TEXT NOT NULL,
	details       TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
	date         TEXT PRIMARY KEY,
	record_count INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
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
	tech          INTEGER NOT NULL,
	sample_count  INTEGER NOT NULL,
	avg_min       REAL NOT NULL,
	avg_max       REAL NOT NULL,
	suppressed    INTEGER NOT NULL,
	PRIMARY KEY (snapshot_date, seniority, stage, metro, tech)
);

CREATE TABLE IF NOT EXISTS market_stats (
	snapshot_date    TEXT PRIMARY KEY,
	total_roles      INTEGER NOT NULL,
	unique_companies INTEGER NOT NULL,
	avg_max_salary   REAL NOT NULL,
	remote_pct       REAL NOT NULL,
	disclosure_rate  REAL NOT NULL,
	wow_change_pct   REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);
CREATE INDEX IF NOT EXISTS idx_jobs_last_seen ON jobs(last_seen);
CREATE INDEX IF NOT EXISTS idx_changelog_job_id ON changelog(job_id);
CREATE INDEX IF NOT EXISTS idx_changelog_snapshot ON changelog(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_members_job_id ON snapshot_members(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const jobColumns = `id, company, title, location, metro, comp_min, comp_max, currency,
	disclosed, posting_date, first_seen, last_seen, description, seniority,
	company_stage, industry, work_arrangement, tech, methodologies, source_batch_id, source_url`

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]model.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load jobs")
	}
	defer rows.Close()

	var recs []model.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: load jobs iterate")
}

const sqliteUpsertJob = `
INSERT INTO jobs (` + jobColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	company = excluded.company,
	title = excluded.title,
	location = excluded.location,
	metro = excluded.metro,
	comp_min = excluded.comp_min,
	comp_max = excluded.comp_max,
	currency = excluded.currency,
	disclosed = excluded.disclosed,
	posting_date = excluded.posting_date,
	first_seen = excluded.first_seen,
	last_seen = excluded.last_seen,
	description = excluded.description,
	seniority = excluded.seniority,
	company_stage = excluded.company_stage,
	industry = excluded.industry,
	work_arrangement = excluded.work_arrangement,
	tech = excluded.tech,
	methodologies = excluded.methodologies,
	source_batch_id = excluded.source_batch_id,
	source_url = excluded.source_url`

func (s *SQLiteStore) UpsertJobs(ctx context.Context, recs []model.JobRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	for i := range recs {
		if err := upsertJobTx(ctx, tx, &recs[i]); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

func (s *SQLiteStore) CommitBatch(ctx context.Context, commit model.BatchCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback()

	date := commit.SnapshotDate.Format(model.DateFormat)

	for i := range commit.Upserts {
		if err := upsertJobTx(ctx, tx, &commit.Upserts[i]); err != nil {
			return err
		}
	}

	for _, ev := range commit.Events {
		var details any
		if ev.Details != nil {
			b, err := json.Marshal(ev.Details)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal event details")
			}
			details = string(b)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO changelog (id, job_id, snapshot_date, event, details, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.JobID, ev.SnapshotDate.Format(model.DateFormat), ev.Event, details, ev.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert changelog for job %s", ev.JobID)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (date, created_at) VALUES (?, ?) ON CONFLICT(date) DO NOTHING`,
		date, time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert snapshot %s", date)
	}
	for _, id := range commit.MemberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO snapshot_members (snapshot_date, job_id) VALUES (?, ?)`,
			date, id,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert member %s", id)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE snapshots SET record_count =
		   (SELECT COUNT(*) FROM snapshot_members WHERE snapshot_date = ?)
		 WHERE date = ?`,
		date, date,
	); err != nil {
		return eris.Wrapf(err, "sqlite: update snapshot count %s", date)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit batch")
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, record_count, created_at FROM snapshots ORDER BY date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var date string
		if err := rows.Scan(&date, &snap.RecordCount, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snap.Date, err = time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse snapshot date %q", date)
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) SnapshotMembers(ctx context.Context, date time.Time) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id FROM snapshot_members WHERE snapshot_date = ?`,
		date.Format(model.DateFormat))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: snapshot members")
	}
	defer rows.Close()

	members := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan member")
		}
		members[id] = true
	}
	return members, eris.Wrap(rows.Err(), "sqlite: snapshot members iterate")
}

func (s *SQLiteStore) SaveAggregates(ctx context.Context, buckets []model.AggregateBucket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin aggregates")
	}
	defer tx.Rollback()

	for _, b := range buckets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO aggregates (snapshot_date, seniority, stage, metro, tech, sample_count, avg_min, avg_max, suppressed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(snapshot_date, seniority, stage, metro, tech) DO UPDATE SET
				sample_count = excluded.sample_count,
				avg_min = excluded.avg_min,
				avg_max = excluded.avg_max,
				suppressed = excluded.suppressed`,
			b.SnapshotDate.Format(model.DateFormat),
			b.Key.Seniority, b.Key.Stage, b.Key.Metro, boolInt(b.Key.Tech),
			b.SampleCount, b.AvgMin, b.AvgMax, boolInt(b.Suppressed),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: upsert aggregate")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit aggregates")
}

const aggregateColumns = `snapshot_date, seniority, stage, metro, tech, sample_count, avg_min, avg_max, suppressed`

func (s *SQLiteStore) ListAggregates(ctx context.Context, date time.Time) ([]model.AggregateBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+aggregateColumns+` FROM aggregates WHERE snapshot_date = ?
		 ORDER BY seniority, stage, metro, tech`,
		date.Format(model.DateFormat))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list aggregates")
	}
	defer rows.Close()
	return collectAggregates(rows)
}

func (s *SQLiteStore) AggregatesBySnapshot(ctx context.Context) (map[time.Time][]model.AggregateBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+aggregateColumns+` FROM aggregates
		 ORDER BY snapshot_date, seniority, stage, metro, tech`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: aggregates by snapshot")
	}
	defer rows.Close()

	buckets, err := collectAggregates(rows)
	if err != nil {
		return nil, err
	}
	bySnapshot := make(map[time.Time][]model.AggregateBucket)
	for _, b := range buckets {
		bySnapshot[b.SnapshotDate] = append(bySnapshot[b.SnapshotDate], b)
	}
	return bySnapshot, nil
}

func (s *SQLiteStore) SaveMarketStats(ctx context.Context, stats model.MarketStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO market_stats (snapshot_date, total_roles, unique_companies, avg_max_salary, remote_pct, disclosure_rate, wow_change_pct)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(snapshot_date) DO UPDATE SET
			total_roles = excluded.total_roles,
			unique_companies = excluded.unique_companies,
			avg_max_salary = excluded.avg_max_salary,
			remote_pct = excluded.remote_pct,
			disclosure_rate = excluded.disclosure_rate,
			wow_change_pct = excluded.wow_change_pct`,
		stats.Date.Format(model.DateFormat), stats.TotalRoles, stats.UniqueCompanies,
		stats.AvgMaxSalary, stats.RemotePct, stats.DisclosureRate, stats.WoWChangePct,
	)
	return eris.Wrap(err, "sqlite: save market stats")
}

func (s *SQLiteStore) ListMarketStats(ctx context.Context) ([]model.MarketStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_date, total_roles, unique_companies, avg_max_salary, remote_pct, disclosure_rate, wow_change_pct
		 FROM market_stats ORDER BY snapshot_date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list market stats")
	}
	defer rows.Close()

	var out []model.MarketStats
	for rows.Next() {
		var st model.MarketStats
		var date string
		if err := rows.Scan(&date, &st.TotalRoles, &st.UniqueCompanies,
			&st.AvgMaxSalary, &st.RemotePct, &st.DisclosureRate, &st.WoWChangePct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan market stats")
		}
		st.Date, err = time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse market stats date %q", date)
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list market stats iterate")
}

func (s *SQLiteStore) Changelog(ctx context.Context, limit int) ([]model.ChangeEntry, error) {
	query := `SELECT id, job_id, snapshot_date, event, details, created_at FROM changelog
	          ORDER BY snapshot_date DESC, created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: changelog")
	}
	defer rows.Close()

	var entries []model.ChangeEntry
	for rows.Next() {
		var e model.ChangeEntry
		var date string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.JobID, &date, &e.Event, &details, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan changelog")
		}
		e.SnapshotDate, err = time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse changelog date %q", date)
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal changelog details")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: changelog iterate")
}

func (s *SQLiteStore) Status(ctx context.Context) (*Status, error) {
	var st Status
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM jobs WHERE disclosed = 1),
			(SELECT COUNT(*) FROM snapshots),
			(SELECT COUNT(*) FROM changelog)`)
	if err := row.Scan(&st.Records, &st.Disclosed, &st.Snapshots, &st.ChangelogEntries); err != nil {
		return nil, eris.Wrap(err, "sqlite: status")
	}
	return &st, nil
}

// helpers

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertJobTx(ctx context.Context, tx execer, rec *model.JobRecord) error {
	methodologies, err := json.Marshal(rec.Methodologies)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal methodologies")
	}
	var postingDate any
	if rec.PostingDate != nil {
		postingDate = rec.PostingDate.Format(model.DateFormat)
	}
	_, err = tx.ExecContext(ctx, sqliteUpsertJob,
		rec.ID, rec.Company, rec.Title, rec.Location, rec.Metro,
		rec.CompMin, rec.CompMax, rec.Currency, boolInt(rec.Disclosed),
		postingDate,
		rec.FirstSeen.Format(model.DateFormat), rec.LastSeen.Format(model.DateFormat),
		rec.Description, rec.Seniority, rec.CompanyStage, rec.Industry,
		rec.WorkArrangement, boolInt(rec.Tech), string(methodologies),
		rec.SourceBatchID, rec.SourceURL,
	)
	return eris.Wrapf(err, "sqlite: upsert job %s", rec.ID)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.JobRecord, error) {
	var rec model.JobRecord
	var disclosed, tech int
	var postingDate sql.NullString
	var firstSeen, lastSeen, methodologies string

	err := row.Scan(&rec.ID, &rec.Company, &rec.Title, &rec.Location, &rec.Metro,
		&rec.CompMin, &rec.CompMax, &rec.Currency, &disclosed, &postingDate,
		&firstSeen, &lastSeen, &rec.Description, &rec.Seniority,
		&rec.CompanyStage, &rec.Industry, &rec.WorkArrangement, &tech,
		&methodologies, &rec.SourceBatchID, &rec.SourceURL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	rec.Disclosed = disclosed != 0
	rec.Tech = tech != 0
	if postingDate.Valid {
		t, err := time.Parse(model.DateFormat, postingDate.String)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse posting date %q", postingDate.String)
		}
		rec.PostingDate = &t
	}
	if rec.FirstSeen, err = time.Parse(model.DateFormat, firstSeen); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse first_seen %q", firstSeen)
	}
	if rec.LastSeen, err = time.Parse(model.DateFormat, lastSeen); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse last_seen %q", lastSeen)
	}
	if err := json.Unmarshal([]byte(methodologies), &rec.Methodologies); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal methodologies")
	}
	return &rec, nil
}

type aggregateRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectAggregates(rows aggregateRows) ([]model.AggregateBucket, error) {
	var buckets []model.AggregateBucket
	for rows.Next() {
		var b model.AggregateBucket
		var date string
		var tech, suppressed int
		if err := rows.Scan(&date, &b.Key.Seniority, &b.Key.Stage, &b.Key.Metro,
			&tech, &b.SampleCount, &b.AvgMin, &b.AvgMax, &suppressed); err != nil {
			return nil, eris.Wrap(err, "store: scan aggregate")
		}
		t, err := time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, eris.Wrapf(err, "store: parse aggregate date %q", date)
		}
		b.SnapshotDate = t
		b.Key.Tech = tech != 0
		b.Suppressed = suppressed != 0
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "store: aggregates iterate")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
