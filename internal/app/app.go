// Package app wires configuration, logging, storage and services into one
// runnable application instance for the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/posterfall/ratingscout/internal/cache"
	"github.com/posterfall/ratingscout/internal/config"
	"github.com/posterfall/ratingscout/internal/domain"
	"github.com/posterfall/ratingscout/internal/kvstore"
	"github.com/posterfall/ratingscout/internal/omdb"
	"github.com/posterfall/ratingscout/internal/quota"
	"github.com/posterfall/ratingscout/internal/resolver"
)

// App holds the fully wired service graph. All correctness-relevant state
// (quota count, cache entries) lives in the store, so instances are cheap to
// discard and rebuild.
type App struct {
	log      zerolog.Logger
	config   *domain.Config
	store    domain.KVStore
	cache    *cache.Store
	quota    *quota.Tracker
	resolver resolver.Service
}

// New creates an application instance with all dependencies initialized.
func New(log zerolog.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	cacheStore := cache.NewStore(log, store, cfg.CacheTTL, cfg.MaxCacheSize, cfg.PruneInterval)
	tracker := quota.NewTracker(log, store, cfg.DailyLimit, cfg.WarnThreshold)
	credential := domain.StaticCredential(cfg.APIKey)
	upstream := omdb.NewClient(log, cfg.APIBaseURL, credential, cfg.RequestTimeout)

	return &App{
		log:      log,
		config:   cfg,
		store:    store,
		cache:    cacheStore,
		quota:    tracker,
		resolver: resolver.NewService(log, cacheStore, tracker, upstream, credential),
	}, nil
}

func openStore(cfg *domain.Config, log zerolog.Logger) (domain.KVStore, error) {
	switch cfg.Storage {
	case domain.StorageBolt:
		return kvstore.NewBoltStore(cfg.DataDir)
	case domain.StorageMemory:
		return kvstore.NewMemoryStore(), nil
	default:
		return kvstore.NewSqliteStore(cfg.DataDir, log)
	}
}

// Resolve runs one lookup through the resolver.
func (a *App) Resolve(ctx context.Context, query domain.LookupQuery) (*domain.Resolution, error) {
	return a.resolver.Resolve(ctx, query)
}

// PruneCache sweeps expired entries and enforces the size bound.
func (a *App) PruneCache(ctx context.Context) (int, error) {
	return a.cache.Prune(ctx)
}

// ClearCache removes every cache entry.
func (a *App) ClearCache(ctx context.Context) (int, error) {
	return a.cache.Clear(ctx)
}

// QuotaStatus reports today's upstream usage against the configured limit.
func (a *App) QuotaStatus(ctx context.Context) (count, limit int, err error) {
	count, err = a.quota.Count(ctx)
	return count, a.config.DailyLimit, err
}

// CacheSize reports the current number of cache entries.
func (a *App) CacheSize(ctx context.Context) (int, error) {
	return a.cache.Len(ctx)
}

// Close releases the backing store.
func (a *App) Close() error {
	return a.store.Close()
}
