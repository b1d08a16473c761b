// Package resolver orchestrates rating resolution: cache check, quota check,
// staged upstream search strategies, and the cache write-back of hits and
// misses.
package resolver

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/posterfall/ratingscout/internal/cache"
	"github.com/posterfall/ratingscout/internal/domain"
	"github.com/posterfall/ratingscout/internal/match"
	"github.com/posterfall/ratingscout/internal/omdb"
	"github.com/posterfall/ratingscout/internal/quota"
)

type Service interface {
	// Resolve produces the best-matching rating record (or cached miss) for
	// an imprecise title query, spending as few upstream calls as possible.
	Resolve(ctx context.Context, query domain.LookupQuery) (*domain.Resolution, error)
}

type service struct {
	log        zerolog.Logger
	cache      *cache.Store
	quota      *quota.Tracker
	upstream   omdb.Querier
	credential domain.CredentialProvider
}

func NewService(log zerolog.Logger, cacheStore *cache.Store, tracker *quota.Tracker, upstream omdb.Querier, credential domain.CredentialProvider) Service {
	return &service{
		log:        log.With().Str("module", "resolver").Logger(),
		cache:      cacheStore,
		quota:      tracker,
		upstream:   upstream,
		credential: credential,
	}
}

// session carries the per-resolution bookkeeping: how many calls were spent
// and whether the most recent upstream step failed rather than cleanly
// missing. A failed final step must surface as an error, never as a cached
// miss.
type session struct {
	calls       int
	lastFailed  bool
	lastFailure error
	blocked     bool
}

func (s *service) Resolve(ctx context.Context, query domain.LookupQuery) (*domain.Resolution, error) {
	key := query.CacheKey()

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		s.log.Debug().Str("key", key).Bool("hit", entry.Record != nil).Msg("cache hit")
		return &domain.Resolution{Record: entry.Record, Miss: entry.Miss, Cached: true}, nil
	}

	if s.credential.GetCredential(ctx) == "" {
		return nil, errors.Wrap(domain.ErrCredentialMissing, "resolve")
	}

	over, err := s.quota.IsOverLimit(ctx)
	if err != nil {
		return nil, err
	}
	if over {
		return nil, errors.Wrap(domain.ErrQuotaExceeded, "resolve")
	}

	sess := &session{}
	record, err := s.dispatch(ctx, query, sess)
	if err != nil {
		return nil, err
	}

	resolution, err := s.finish(ctx, key, query, record, sess)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("key", key).
		Int("upstream_calls", sess.calls).
		Bool("found", resolution.Found()).
		Msg("resolution complete")
	return resolution, nil
}

// dispatch picks the search strategy by metadata completeness. A query with
// neither year nor type is the most expensive path (up to 4 upstream calls);
// callers are expected to supply whatever hints extraction allows.
func (s *service) dispatch(ctx context.Context, query domain.LookupQuery, sess *session) (*omdb.Record, error) {
	switch {
	case query.Year != "" && query.Type.Valid():
		return s.exact(ctx, sess, query.Title, query.Year, query.Type)

	case query.Year != "":
		return s.dualType(ctx, query, sess)

	default:
		return s.smart(ctx, query, sess)
	}
}

// dualType tries the exact query as a movie first, then as a series. First
// success wins.
func (s *service) dualType(ctx context.Context, query domain.LookupQuery, sess *session) (*omdb.Record, error) {
	record, err := s.exact(ctx, sess, query.Title, query.Year, domain.MediaTypeMovie)
	if err != nil || record != nil {
		return record, err
	}

	if !s.quotaPermits(ctx, sess) {
		return nil, nil
	}
	return s.exact(ctx, sess, query.Title, query.Year, domain.MediaTypeSeries)
}

// smart handles the year-less paths: exact query for the preferred type,
// an alternate-type probe, and finally a broad search scored through the
// matcher with a follow-up detail fetch.
func (s *service) smart(ctx context.Context, query domain.LookupQuery, sess *session) (*omdb.Record, error) {
	preferred := query.Type
	if !preferred.Valid() {
		preferred = domain.MediaTypeMovie
	}

	tentative, err := s.exact(ctx, sess, query.Title, "", preferred)
	if err != nil {
		return nil, err
	}
	tentativeOK := tentative != nil && match.IsAcceptableMatch(query.Title, tentative.Title)

	if s.quotaPermits(ctx, sess) {
		alternate, err := s.exact(ctx, sess, query.Title, "", preferred.Other())
		if err != nil {
			return nil, err
		}
		alternateOK := alternate != nil && match.IsAcceptableMatch(query.Title, alternate.Title)

		switch {
		case tentativeOK && alternateOK:
			if match.Score(toCandidate(alternate), query.Title, query.Year) > match.Score(toCandidate(tentative), query.Title, query.Year) {
				return alternate, nil
			}
			return tentative, nil
		case alternateOK:
			return alternate, nil
		case tentativeOK:
			return tentative, nil
		}
	}

	if tentativeOK {
		return tentative, nil
	}

	// Neither exact probe produced an acceptable match: fall back to the
	// broad keyword search and score everything it returns.
	if !s.quotaPermits(ctx, sess) {
		return nil, nil
	}
	return s.broad(ctx, query, sess)
}

func (s *service) broad(ctx context.Context, query domain.LookupQuery, sess *session) (*omdb.Record, error) {
	if err := s.quota.Increment(ctx); err != nil {
		return nil, err
	}
	sess.calls++

	results, err := s.upstream.Search(ctx, query.Title)
	if err != nil {
		return nil, s.absorb(sess, err, "broad search")
	}
	sess.lastFailed = false
	if len(results) == 0 {
		return nil, nil
	}

	candidates := make([]match.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, match.Candidate{
			Title:      r.Title,
			Year:       r.Year,
			Type:       r.Type,
			ExternalID: r.ExternalID,
			HasPoster:  r.HasPoster,
		})
	}

	best := match.Best(candidates, query.Title, query.Year)
	if best < 0 {
		return nil, nil
	}

	// Search responses lack rating fields; one more detail call fetches the
	// full record for the winner.
	if !s.quotaPermits(ctx, sess) {
		return nil, nil
	}
	if err := s.quota.Increment(ctx); err != nil {
		return nil, err
	}
	sess.calls++

	record, err := s.upstream.Detail(ctx, candidates[best].ExternalID)
	if err != nil {
		return nil, s.absorb(sess, err, "detail fetch")
	}
	sess.lastFailed = false
	return record, nil
}

// exact performs one quota-counted exact lookup. Step-local upstream
// failures are absorbed and read as "not found"; an invalid credential
// aborts the whole resolution.
func (s *service) exact(ctx context.Context, sess *session, title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
	if err := s.quota.Increment(ctx); err != nil {
		return nil, err
	}
	sess.calls++

	record, err := s.upstream.Exact(ctx, title, year, mediaType)
	if err != nil {
		return nil, s.absorb(sess, err, "exact lookup")
	}
	sess.lastFailed = false
	return record, nil
}

// absorb classifies one failed upstream call: invalid credential is fatal
// for the session, anything else is recorded and read as a clean miss so the
// next strategy step can proceed.
func (s *service) absorb(sess *session, err error, step string) error {
	if errors.Is(err, domain.ErrInvalidCredential) {
		return err
	}
	sess.lastFailed = true
	sess.lastFailure = err
	s.log.Debug().Err(err).Str("step", step).Msg("upstream step failed, continuing")
	return nil
}

// quotaPermits reports whether another upstream call may be spent. A read
// failure is treated as exhausted rather than risking an over-quota call.
func (s *service) quotaPermits(ctx context.Context, sess *session) bool {
	over, err := s.quota.IsOverLimit(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("quota check failed, stopping strategy")
		sess.blocked = true
		return false
	}
	if over {
		sess.blocked = true
	}
	return !over
}

// finish turns the obtained record (or lack of one) into a terminal
// resolution and writes the cache entry. A record without any rating field
// is cached as a miss: there is nothing useful to display.
func (s *service) finish(ctx context.Context, key string, query domain.LookupQuery, record *omdb.Record, sess *session) (*domain.Resolution, error) {
	if record == nil || !recordHasRating(record) {
		if record == nil && sess.lastFailed {
			// The final applicable step failed rather than cleanly missing;
			// caching a miss here would poison the key.
			return nil, sess.lastFailure
		}
		if record == nil && sess.blocked {
			// Quota ran out mid-strategy with nothing obtained. Not cached:
			// tomorrow's quota deserves a clean retry.
			return nil, errors.Wrap(domain.ErrQuotaExceeded, "mid-resolution")
		}

		miss := &domain.MissRecord{QueryTitle: query.Title, CachedAt: time.Now()}
		if err := s.cache.Put(ctx, key, cache.Entry{Miss: miss}); err != nil {
			return nil, err
		}
		return &domain.Resolution{Miss: miss}, nil
	}

	resolved := &domain.RatingRecord{
		Title:          record.Title,
		Year:           record.Year,
		Type:           record.Type,
		ExternalID:     record.ExternalID,
		IMDBRating:     record.IMDBRating,
		RottenTomatoes: record.RottenTomatoes,
		CachedAt:       time.Now(),
	}
	if err := s.cache.Put(ctx, key, cache.Entry{Record: resolved}); err != nil {
		return nil, err
	}
	return &domain.Resolution{Record: resolved}, nil
}

func recordHasRating(r *omdb.Record) bool {
	return r.IMDBRating != "" || r.RottenTomatoes != ""
}

func toCandidate(r *omdb.Record) match.Candidate {
	return match.Candidate{
		Title:      r.Title,
		Year:       r.Year,
		Type:       r.Type,
		ExternalID: r.ExternalID,
		HasRating:  recordHasRating(r),
		HasPoster:  r.HasPoster,
	}
}
