package domain

import "time"

// StorageBackend selects which embedded store backs the cache and quota state.
type StorageBackend string

const (
	StorageSqlite StorageBackend = "sqlite"
	StorageBolt   StorageBackend = "bolt"
	StorageMemory StorageBackend = "memory"
)

// Config holds runtime configuration. Policy defaults mirror the upstream
// provider's free tier; all of them may be overridden via config file or
// RATINGSCOUT_* environment variables.
type Config struct {
	APIKey         string         `mapstructure:"api_key"`
	APIBaseURL     string         `mapstructure:"api_base_url"`
	Storage        StorageBackend `mapstructure:"storage"`
	DataDir        string         `mapstructure:"data_dir"`
	DailyLimit     int            `mapstructure:"daily_limit"`
	WarnThreshold  int            `mapstructure:"warn_threshold"`
	CacheTTL       time.Duration  `mapstructure:"cache_ttl"`
	MaxCacheSize   int            `mapstructure:"max_cache_size"`
	PruneInterval  int            `mapstructure:"prune_interval"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
}

// Defaults for the policy constants. Not architectural limits.
const (
	DefaultAPIBaseURL     = "https://www.omdbapi.com/"
	DefaultDailyLimit     = 1000
	DefaultWarnThreshold  = 900
	DefaultCacheTTL       = 7 * 24 * time.Hour
	DefaultMaxCacheSize   = 1000
	DefaultPruneInterval  = 50
	DefaultRequestTimeout = 8 * time.Second
)
