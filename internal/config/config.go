package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/posterfall/ratingscout/internal/domain"
)

// Load builds configuration from two sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (RATINGSCOUT_*)
func Load() (*domain.Config, error) {
	cfg := &domain.Config{
		APIKey:         viper.GetString("api_key"),
		APIBaseURL:     viper.GetString("api_base_url"),
		Storage:        domain.StorageBackend(viper.GetString("storage")),
		DataDir:        viper.GetString("data_dir"),
		DailyLimit:     viper.GetInt("daily_limit"),
		WarnThreshold:  viper.GetInt("warn_threshold"),
		CacheTTL:       viper.GetDuration("cache_ttl"),
		MaxCacheSize:   viper.GetInt("max_cache_size"),
		PruneInterval:  viper.GetInt("prune_interval"),
		RequestTimeout: viper.GetDuration("request_timeout"),
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = domain.DefaultAPIBaseURL
	}
	if cfg.Storage == "" {
		cfg.Storage = domain.StorageSqlite
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = domain.DefaultDailyLimit
	}
	if cfg.WarnThreshold == 0 {
		cfg.WarnThreshold = domain.DefaultWarnThreshold
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = domain.DefaultCacheTTL
	}
	if cfg.MaxCacheSize == 0 {
		cfg.MaxCacheSize = domain.DefaultMaxCacheSize
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = domain.DefaultPruneInterval
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = domain.DefaultRequestTimeout
	}

	switch cfg.Storage {
	case domain.StorageSqlite, domain.StorageBolt, domain.StorageMemory:
	default:
		return nil, fmt.Errorf("invalid storage: %s (must be 'sqlite', 'bolt', or 'memory')", cfg.Storage)
	}

	if cfg.WarnThreshold > cfg.DailyLimit {
		return nil, fmt.Errorf("warn_threshold (%d) cannot exceed daily_limit (%d)", cfg.WarnThreshold, cfg.DailyLimit)
	}

	// The API key is deliberately not required here: the resolver reports a
	// structured "credential missing" result, and the maintenance commands
	// work without one.
	return cfg, nil
}
