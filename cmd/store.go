package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/config"
	"github.com/sells-group/terms-extractor/internal/consensus"
	"github.com/sells-group/terms-extractor/internal/engine"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "terms.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore connects and applies the schema.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline opens the store and a learning pipeline without any
// extraction backends.
func initPipeline(ctx context.Context) (store.Store, *learning.Pipeline, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return st, learning.New(st, cfg.Learning), nil
}

// noBackends builds a runtime that never calls a model.
func noBackends() engine.BuildOption {
	return engine.WithBackends(func(*config.Config) ([]consensus.Backend, map[string]time.Duration, error) {
		return nil, nil, nil
	})
}

// initRuntime wires the full engine. CLI commands pass a private registry
// since nothing scrapes them.
func initRuntime(ctx context.Context, st store.Store, reg prometheus.Registerer, opts ...engine.BuildOption) (*engine.Runtime, error) {
	rt, err := engine.Build(ctx, cfg, st, reg, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "init runtime")
	}
	return rt, nil
}
