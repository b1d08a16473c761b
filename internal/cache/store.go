// Package cache implements the durable lookup cache: TTL expiry, a size
// bound with oldest-first eviction, and negative caching of failed lookups.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/posterfall/ratingscout/internal/domain"
)

// keyPrefix scopes all cache entries in the shared KV store. Bumping the
// version segment abandons old entries without a migration.
const keyPrefix = "rs:v1:"

// Entry is one cached resolution: either a rating record or a negative-cache
// miss, never both.
type Entry struct {
	Record *domain.RatingRecord
	Miss   *domain.MissRecord
}

// CachedAt returns the write timestamp of whichever record is present.
func (e Entry) CachedAt() time.Time {
	if e.Record != nil {
		return e.Record.CachedAt
	}
	if e.Miss != nil {
		return e.Miss.CachedAt
	}
	return time.Time{}
}

// envelope is the stored JSON shape. A miss is distinguished from a rating
// record purely by shape, mirroring how the two records share one keyspace.
type envelope struct {
	NotFound   bool                 `json:"notFound,omitempty"`
	QueryTitle string               `json:"queryTitle,omitempty"`
	Record     *domain.RatingRecord `json:"record,omitempty"`
	CachedAt   time.Time            `json:"cachedAt"`
}

// Store is the cache layer over the shared KV store. Safe for concurrent
// use; entries are immutable and keyed by content, so concurrent puts for the
// same key are last-write-wins.
type Store struct {
	log           zerolog.Logger
	kv            domain.KVStore
	ttl           time.Duration
	maxEntries    int
	pruneInterval int

	mu     sync.Mutex
	writes int
}

// NewStore creates a cache store. Zero-valued policy settings fall back to
// the defaults (7-day TTL, 1000 entries, prune every 50 writes).
func NewStore(log zerolog.Logger, kv domain.KVStore, ttl time.Duration, maxEntries, pruneInterval int) *Store {
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = domain.DefaultMaxCacheSize
	}
	if pruneInterval <= 0 {
		pruneInterval = domain.DefaultPruneInterval
	}
	return &Store{
		log:           log.With().Str("module", "cache").Logger(),
		kv:            kv,
		ttl:           ttl,
		maxEntries:    maxEntries,
		pruneInterval: pruneInterval,
	}
}

// Get returns the entry for key, or nil if absent or expired. An expired
// entry is removed as a side effect.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	storageKey := keyPrefix + key

	values, err := s.kv.GetMany(ctx, []string{storageKey})
	if err != nil {
		return nil, errors.Wrap(err, "cache read")
	}

	raw, ok := values[storageKey]
	if !ok {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt entry: drop it and treat as a miss rather than failing
		// the whole resolution.
		s.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		if rmErr := s.kv.RemoveMany(ctx, []string{storageKey}); rmErr != nil {
			return nil, errors.Wrap(rmErr, "cache remove")
		}
		return nil, nil
	}

	if time.Since(env.CachedAt) > s.ttl {
		if err := s.kv.RemoveMany(ctx, []string{storageKey}); err != nil {
			return nil, errors.Wrap(err, "cache expire")
		}
		s.log.Trace().Str("key", key).Time("cached_at", env.CachedAt).Msg("entry expired")
		return nil, nil
	}

	if env.NotFound {
		return &Entry{Miss: &domain.MissRecord{QueryTitle: env.QueryTitle, CachedAt: env.CachedAt}}, nil
	}
	return &Entry{Record: env.Record}, nil
}

// Put upserts the entry for key and enforces the size bound. Every
// pruneInterval-th write additionally sweeps expired entries; the full sweep
// is amortized to bound write-path I/O.
func (s *Store) Put(ctx context.Context, key string, entry Entry) error {
	env := envelope{CachedAt: entry.CachedAt()}
	if env.CachedAt.IsZero() {
		env.CachedAt = time.Now()
	}

	switch {
	case entry.Record != nil:
		record := *entry.Record
		record.CachedAt = env.CachedAt
		env.Record = &record
	case entry.Miss != nil:
		env.NotFound = true
		env.QueryTitle = entry.Miss.QueryTitle
	default:
		return errors.New("cache entry has neither record nor miss")
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "cache encode")
	}

	if err := s.kv.SetMany(ctx, map[string][]byte{keyPrefix + key: raw}); err != nil {
		return errors.Wrap(err, "cache write")
	}

	s.mu.Lock()
	s.writes++
	fullSweep := s.writes >= s.pruneInterval
	if fullSweep {
		s.writes = 0
	}
	s.mu.Unlock()

	if fullSweep {
		if _, err := s.Prune(ctx); err != nil {
			return err
		}
		return nil
	}
	return s.enforceBound(ctx, false)
}

// Prune removes expired entries, then evicts oldest-first until the store is
// back at the size bound. Returns the number of entries removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	removedExpired, err := s.sweepExpired(ctx)
	if err != nil {
		return 0, err
	}

	before, err := s.Len(ctx)
	if err != nil {
		return removedExpired, err
	}
	if err := s.enforceBound(ctx, true); err != nil {
		return removedExpired, err
	}
	after, err := s.Len(ctx)
	if err != nil {
		return removedExpired, err
	}

	removed := removedExpired + (before - after)
	s.log.Debug().Int("removed", removed).Int("remaining", after).Msg("prune complete")
	return removed, nil
}

// Clear removes every cache entry. Used by an explicit user action, never by
// the resolver. Returns the number of entries removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	keys, err := s.kv.ListKeys(ctx, keyPrefix)
	if err != nil {
		return 0, errors.Wrap(err, "cache scan")
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.kv.RemoveMany(ctx, keys); err != nil {
		return 0, errors.Wrap(err, "cache clear")
	}
	return len(keys), nil
}

// Len returns the current number of cache entries, expired entries included.
func (s *Store) Len(ctx context.Context) (int, error) {
	keys, err := s.kv.ListKeys(ctx, keyPrefix)
	if err != nil {
		return 0, errors.Wrap(err, "cache scan")
	}
	return len(keys), nil
}

func (s *Store) sweepExpired(ctx context.Context) (int, error) {
	keys, err := s.kv.ListKeys(ctx, keyPrefix)
	if err != nil {
		return 0, errors.Wrap(err, "cache scan")
	}

	values, err := s.kv.GetMany(ctx, keys)
	if err != nil {
		return 0, errors.Wrap(err, "cache read")
	}

	var expired []string
	for key, raw := range values {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			expired = append(expired, key)
			continue
		}
		if time.Since(env.CachedAt) > s.ttl {
			expired = append(expired, key)
		}
	}

	if len(expired) == 0 {
		return 0, nil
	}
	if err := s.kv.RemoveMany(ctx, expired); err != nil {
		return 0, errors.Wrap(err, "cache remove")
	}
	return len(expired), nil
}

// enforceBound evicts oldest-by-cachedAt entries until the store is at the
// size bound. When logEviction is false the quiet path is used (per-write
// checks would otherwise be noisy).
func (s *Store) enforceBound(ctx context.Context, logEviction bool) error {
	keys, err := s.kv.ListKeys(ctx, keyPrefix)
	if err != nil {
		return errors.Wrap(err, "cache scan")
	}
	if len(keys) <= s.maxEntries {
		return nil
	}

	values, err := s.kv.GetMany(ctx, keys)
	if err != nil {
		return errors.Wrap(err, "cache read")
	}

	type aged struct {
		key      string
		cachedAt time.Time
	}
	entries := make([]aged, 0, len(values))
	for key, raw := range values {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Undecodable entries sort first and get evicted.
			entries = append(entries, aged{key: key})
			continue
		}
		entries = append(entries, aged{key: key, cachedAt: env.CachedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].cachedAt.Before(entries[j].cachedAt)
	})

	over := len(entries) - s.maxEntries
	evict := make([]string, 0, over)
	for _, e := range entries[:over] {
		evict = append(evict, e.key)
	}

	if err := s.kv.RemoveMany(ctx, evict); err != nil {
		return errors.Wrap(err, "cache evict")
	}
	if logEviction {
		s.log.Debug().Int("evicted", len(evict)).Msg("size bound enforced")
	}
	return nil
}
