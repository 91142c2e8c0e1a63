package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cro-report/jobs-cli/internal/enrich"
	"github.com/cro-report/jobs-cli/internal/pipeline"
	"github.com/cro-report/jobs-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initPipeline(ctx context.Context) (*pipeline.Pipeline, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	tables, err := enrich.LoadTables(cfg.Enrich.RulesPath)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return pipeline.New(cfg, st, tables), st, nil
}
