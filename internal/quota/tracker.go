// Package quota counts upstream calls per calendar day against a hard
// ceiling so the resolver never spends past the provider's free tier.
package quota

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/posterfall/ratingscout/internal/domain"
)

const quotaKey = "rs:quota"

// dayFormat is the calendar-day key; rollover is detected lazily by
// comparing the stored day against today at read time.
const dayFormat = "2006-01-02"

// counter is the stored shape. Date and count always travel together in one
// value, so they are written atomically by construction.
type counter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Tracker tracks daily upstream usage in the shared KV store.
//
// Increment serializes its read-modify-write through a mutex: two in-flight
// resolutions incrementing concurrently must not both observe the same stale
// count and undercount true usage. The mutex only guards within-process
// races; the count itself lives in the store and survives restarts.
type Tracker struct {
	log           zerolog.Logger
	kv            domain.KVStore
	limit         int
	warnThreshold int

	mu sync.Mutex

	now func() time.Time
}

// NewTracker creates a quota tracker. Zero-valued limits fall back to the
// defaults (1000 daily, warn at 900).
func NewTracker(log zerolog.Logger, kv domain.KVStore, limit, warnThreshold int) *Tracker {
	if limit <= 0 {
		limit = domain.DefaultDailyLimit
	}
	if warnThreshold <= 0 {
		warnThreshold = domain.DefaultWarnThreshold
	}
	return &Tracker{
		log:           log.With().Str("module", "quota").Logger(),
		kv:            kv,
		limit:         limit,
		warnThreshold: warnThreshold,
		now:           time.Now,
	}
}

// Count returns today's upstream call count. A stored count from a previous
// day reads as zero; there is no scheduled reset job.
func (t *Tracker) Count(ctx context.Context) (int, error) {
	c, err := t.read(ctx)
	if err != nil {
		return 0, err
	}
	if c.Date != t.today() {
		return 0, nil
	}
	return c.Count, nil
}

// Increment records one upstream call, rolling the counter over to today
// first if the stored day is stale.
func (t *Tracker) Increment(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.read(ctx)
	if err != nil {
		return err
	}

	today := t.today()
	if c.Date != today {
		c = counter{Date: today}
	}
	c.Count++

	raw, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "quota encode")
	}
	if err := t.kv.SetMany(ctx, map[string][]byte{quotaKey: raw}); err != nil {
		return errors.Wrap(err, "quota write")
	}

	if c.Count == t.warnThreshold {
		t.log.Warn().Int("count", c.Count).Int("limit", t.limit).Msg("approaching daily quota limit")
	}
	return nil
}

// IsOverLimit reports whether today's count has reached the daily ceiling.
func (t *Tracker) IsOverLimit(ctx context.Context) (bool, error) {
	count, err := t.Count(ctx)
	if err != nil {
		return false, err
	}
	return count >= t.limit, nil
}

func (t *Tracker) read(ctx context.Context) (counter, error) {
	values, err := t.kv.GetMany(ctx, []string{quotaKey})
	if err != nil {
		return counter{}, errors.Wrap(err, "quota read")
	}

	raw, ok := values[quotaKey]
	if !ok {
		return counter{}, nil
	}

	var c counter
	if err := json.Unmarshal(raw, &c); err != nil {
		// Treat a corrupt counter as cold rather than blocking all lookups.
		t.log.Warn().Err(err).Msg("resetting undecodable quota counter")
		return counter{}, nil
	}
	return c, nil
}

func (t *Tracker) today() string {
	return t.now().Format(dayFormat)
}
