package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cro-report/jobs-cli/internal/config"
	"github.com/cro-report/jobs-cli/internal/model"
)

// Status summarizes the master store for operators.
type Status struct {
	Records          int `json:"records"`
	Disclosed        int `json:"disclosed"`
	Snapshots        int `json:"snapshots"`
	ChangelogEntries int `json:"changelog_entries"`
}

// Store is the persistence interface for the master store: the
// current-state job table, the append-only changelog, retained snapshots
// and computed aggregates.
type Store interface {
	// Jobs
	LoadJobs(ctx context.Context) ([]model.JobRecord, error)
	UpsertJobs(ctx context.Context, recs []model.JobRecord) error

	// CommitBatch applies one batch merge atomically: job upserts,
	// changelog events and snapshot membership all land in a single
	// transaction or not at all.
	CommitBatch(ctx context.Context, commit model.BatchCommit) error

	// Snapshots
	ListSnapshots(ctx context.Context) ([]model.Snapshot, error)
	SnapshotMembers(ctx context.Context, date time.Time) (map[string]bool, error)

	// Aggregates
	SaveAggregates(ctx context.Context, buckets []model.AggregateBucket) error
	ListAggregates(ctx context.Context, date time.Time) ([]model.AggregateBucket, error)
	AggregatesBySnapshot(ctx context.Context) (map[time.Time][]model.AggregateBucket, error)

	// Market stats, one row per snapshot, replaced on recompute.
	SaveMarketStats(ctx context.Context, stats model.MarketStats) error
	ListMarketStats(ctx context.Context) ([]model.MarketStats, error)

	// Changelog
	Changelog(ctx context.Context, limit int) ([]model.ChangeEntry, error)

	// Lifecycle
	Status(ctx context.Context) (*Status, error)
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by config: sqlite (default) or postgres.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
