package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/seenimoa/finboard/internal/config"
	"github.com/seenimoa/finboard/internal/datasource"
	"github.com/seenimoa/finboard/internal/infra"
	"github.com/seenimoa/finboard/internal/llm"
)

// Cache drivers accepted in cache.driver.
const (
	cacheMemory = "memory"
	cacheSQLite = "sqlite"
)

// app bundles what every data command needs.
type app struct {
	agg     *datasource.Aggregator
	closers []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

// newApp wires backend, cache, service and aggregator from the loaded config.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	provider, err := llm.NewProviderFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("backend setup failed: %w", err)
	}

	a := &app{}
	storage, err := openStorage(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	if c, ok := storage.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	cache := infra.NewSessionCache(storage, infra.WithLogger(logger))
	svc := datasource.NewServiceFromConfig(provider, cache, cfg, logger)
	a.agg = datasource.NewAggregator(svc, cfg.Cache.DashboardTTL())

	logger.Debug("app ready",
		"driver", cfg.LLM.Driver,
		"provider", provider.Name(),
		"cache", cfg.Cache.Driver)
	return a, nil
}

func openStorage(ctx context.Context, cc config.CacheConfig) (infra.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cc.Driver)) {
	case "", cacheMemory:
		return infra.NewMemoryStorage(), nil
	case cacheSQLite:
		return infra.NewSQLiteStorage(ctx, cc.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown cache driver %q (want %q or %q)", cc.Driver, cacheMemory, cacheSQLite)
	}
}
