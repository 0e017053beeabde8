package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/catalog"
	"github.com/govatlas/catalog-cli/internal/enrich"
	"github.com/govatlas/catalog-cli/internal/fetcher"
	"github.com/govatlas/catalog-cli/internal/kvcache"
	"github.com/govatlas/catalog-cli/internal/metrics"
	"github.com/govatlas/catalog-cli/internal/model"
	"github.com/govatlas/catalog-cli/internal/objstore"
	"github.com/govatlas/catalog-cli/internal/ratelimit"
	"github.com/govatlas/catalog-cli/internal/registry"
	"github.com/govatlas/catalog-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadSources merges the builtin registry with the configured overlay
// file, then filters to the requested IDs.
func loadSources(ids []string) ([]model.Source, error) {
	sources := registry.Builtin()
	if cfg.Sources.File != "" {
		overlay, err := registry.LoadFile(cfg.Sources.File)
		if err != nil {
			return nil, err
		}
		sources = registry.Merge(sources, overlay)
	}
	return registry.Select(sources, ids)
}

func initSnapshots(ctx context.Context) (objstore.ObjectStore, error) {
	switch cfg.Snapshot.Driver {
	case "":
		return nil, nil
	case "fs":
		if cfg.Snapshot.Dir == "" {
			return nil, eris.New("snapshot.dir is required for the fs driver")
		}
		return objstore.NewFS(cfg.Snapshot.Dir), nil
	case "s3":
		if cfg.Snapshot.Bucket == "" {
			return nil, eris.New("snapshot.bucket is required for the s3 driver")
		}
		return objstore.NewS3(ctx, cfg.Snapshot.Bucket, cfg.Snapshot.Endpoint)
	default:
		return nil, eris.Errorf("unsupported snapshot driver: %s", cfg.Snapshot.Driver)
	}
}

func initEnricher() (*enrich.Enricher, func(), error) {
	if cfg.Lookup.CachePath == "" {
		return enrich.New(nil), func() {}, nil
	}
	kv, err := kvcache.NewSQLite(cfg.Lookup.CachePath)
	if err != nil {
		return nil, nil, err
	}
	return enrich.New(kv), func() { _ = kv.Close() }, nil
}

func buildRunner(ctx context.Context, st store.Store) (*catalog.Runner, func(), error) {
	snapshots, err := initSnapshots(ctx)
	if err != nil {
		return nil, nil, err
	}
	enricher, closeEnricher, err := initEnricher()
	if err != nil {
		return nil, nil, err
	}

	var strategy ratelimit.Strategy = ratelimit.NewLocalLimiter()
	if cfg.RateLimit.Endpoint != "" {
		strategy = ratelimit.NewDistributedLimiter(cfg.RateLimit.Endpoint, ratelimit.NewLocalLimiter())
	}
	client := fetcher.New(strategy, time.Duration(cfg.Fetch.TimeoutSecs)*time.Second)
	if cfg.Fetch.UserAgent != "" {
		client.SetUserAgent(cfg.Fetch.UserAgent)
	}

	runner := catalog.New(catalog.Config{
		Store:     st,
		Fetcher:   client,
		Upserter:  catalog.NewUpserter(st, enricher),
		Snapshots: snapshots,
		Sink:      metrics.FromEnv(nil),
	})
	return runner, closeEnricher, nil
}
