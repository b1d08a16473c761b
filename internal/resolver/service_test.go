package resolver

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterfall/ratingscout/internal/cache"
	"github.com/posterfall/ratingscout/internal/domain"
	"github.com/posterfall/ratingscout/internal/kvstore"
	"github.com/posterfall/ratingscout/internal/omdb"
	"github.com/posterfall/ratingscout/internal/quota"
)

type fakeUpstream struct {
	calls    int
	exactFn  func(title, year string, mediaType domain.MediaType) (*omdb.Record, error)
	searchFn func(title string) ([]omdb.SearchResult, error)
	detailFn func(externalID string) (*omdb.Record, error)
}

func (f *fakeUpstream) Exact(_ context.Context, title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
	f.calls++
	if f.exactFn == nil {
		return nil, nil
	}
	return f.exactFn(title, year, mediaType)
}

func (f *fakeUpstream) Search(_ context.Context, title string) ([]omdb.SearchResult, error) {
	f.calls++
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(title)
}

func (f *fakeUpstream) Detail(_ context.Context, externalID string) (*omdb.Record, error) {
	f.calls++
	if f.detailFn == nil {
		return nil, nil
	}
	return f.detailFn(externalID)
}

type fixture struct {
	service  Service
	upstream *fakeUpstream
	tracker  *quota.Tracker
	cache    *cache.Store
	cred     domain.StaticCredential
}

func newFixture(t *testing.T, upstream *fakeUpstream, dailyLimit int) *fixture {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	log := zerolog.Nop()

	cacheStore := cache.NewStore(log, kv, 0, 0, 0)
	tracker := quota.NewTracker(log, kv, dailyLimit, 0)
	cred := domain.StaticCredential("test-key")

	return &fixture{
		service:  NewService(log, cacheStore, tracker, upstream, cred),
		upstream: upstream,
		tracker:  tracker,
		cache:    cacheStore,
		cred:     cred,
	}
}

func inceptionRecord() *omdb.Record {
	return &omdb.Record{
		Title:      "Inception",
		Year:       "2010",
		Type:       domain.MediaTypeMovie,
		ExternalID: "tt1375666",
		IMDBRating: "8.8",
		HasPoster:  true,
	}
}

func TestResolveEndToEndAndIdempotence(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			if mediaType == domain.MediaTypeMovie {
				return inceptionRecord(), nil
			}
			return nil, nil
		},
	}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.False(t, res.Cached)
	assert.Equal(t, "8.8", res.Record.IMDBRating)
	assert.Empty(t, res.Record.RottenTomatoes)

	callsAfterFirst := upstream.calls
	assert.Greater(t, callsAfterFirst, 0)

	// identical query within TTL: zero upstream calls, identical content
	res2, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	require.NoError(t, err)
	require.True(t, res2.Found())
	assert.True(t, res2.Cached)
	assert.Equal(t, res.Record, res2.Record)
	assert.Equal(t, callsAfterFirst, upstream.calls)
}

func TestResolveCacheKeyEquivalence(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			return inceptionRecord(), nil
		},
	}
	f := newFixture(t, upstream, 1000)

	_, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	require.NoError(t, err)
	calls := upstream.calls

	for _, title := range []string{"inception", "  Inception  ", "INCEPTION"} {
		res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: title})
		require.NoError(t, err)
		assert.True(t, res.Cached, "title %q should hit the cache", title)
	}
	assert.Equal(t, calls, upstream.calls)
}

func TestResolveCredentialMissing(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{}
	kv := kvstore.NewMemoryStore()
	log := zerolog.Nop()
	service := NewService(log, cache.NewStore(log, kv, 0, 0, 0), quota.NewTracker(log, kv, 0, 0), upstream, domain.StaticCredential(""))

	_, err := service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	assert.True(t, errors.Is(err, domain.ErrCredentialMissing))
	assert.Equal(t, 0, upstream.calls)
}

func TestResolveQuotaHardStop(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{}
	f := newFixture(t, upstream, 2)

	require.NoError(t, f.tracker.Increment(ctx))
	require.NoError(t, f.tracker.Increment(ctx))

	_, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))
	assert.Equal(t, 0, upstream.calls)
}

func TestResolveEveryCallCountsAgainstQuota(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{} // everything misses: exact x2, search, no detail
	f := newFixture(t, upstream, 1000)

	_, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Unknown Title"})
	require.NoError(t, err)

	count, err := f.tracker.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, upstream.calls, count)
	assert.Equal(t, 3, count)
}

func TestResolveMissCaching(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "No Such Title"})
	require.NoError(t, err)
	assert.False(t, res.Found())
	require.NotNil(t, res.Miss)
	assert.Equal(t, "No Such Title", res.Miss.QueryTitle)
	calls := upstream.calls

	// repeat within TTL: the negative cache answers, zero upstream calls
	res2, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "No Such Title"})
	require.NoError(t, err)
	assert.True(t, res2.Cached)
	require.NotNil(t, res2.Miss)
	assert.Equal(t, calls, upstream.calls)
}

func TestResolveExactPathWithFullMetadata(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			assert.Equal(t, "2010", year)
			assert.Equal(t, domain.MediaTypeMovie, mediaType)
			return inceptionRecord(), nil
		},
	}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception", Year: "2010", Type: domain.MediaTypeMovie})
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.Equal(t, 1, upstream.calls)
}

func TestResolveDualTypeFallsBackToSeries(t *testing.T) {
	ctx := context.Background()
	var seenTypes []domain.MediaType
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			seenTypes = append(seenTypes, mediaType)
			if mediaType == domain.MediaTypeSeries {
				return &omdb.Record{
					Title: "The Office", Year: "2005", Type: domain.MediaTypeSeries,
					ExternalID: "tt0386676", IMDBRating: "8.9", HasPoster: true,
				}, nil
			}
			return nil, nil
		},
	}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "The Office", Year: "2005"})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, domain.MediaTypeSeries, res.Record.Type)
	assert.Equal(t, []domain.MediaType{domain.MediaTypeMovie, domain.MediaTypeSeries}, seenTypes)
}

func TestResolveBroadSearchScoresAndFetchesDetail(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		searchFn: func(title string) ([]omdb.SearchResult, error) {
			return []omdb.SearchResult{
				{Title: "The Office", Year: "2001", Type: domain.MediaTypeSeries, ExternalID: "tt0290978"},
				{Title: "The Office", Year: "2005", Type: domain.MediaTypeSeries, ExternalID: "tt0386676", HasPoster: true},
			}, nil
		},
		detailFn: func(externalID string) (*omdb.Record, error) {
			assert.Equal(t, "tt0386676", externalID)
			return &omdb.Record{
				Title: "The Office", Year: "2005", Type: domain.MediaTypeSeries,
				ExternalID: "tt0386676", IMDBRating: "8.9", HasPoster: true,
			}, nil
		},
	}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "The Office"})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, "tt0386676", res.Record.ExternalID)
	// exact movie + exact series + search + detail
	assert.Equal(t, 4, upstream.calls)
}

func TestResolveSmartPrefersBetterAlternate(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			if mediaType == domain.MediaTypeMovie {
				// ratingless, posterless artifact
				return &omdb.Record{Title: "The Office", Year: "2019", Type: domain.MediaTypeMovie, ExternalID: "tt9999999"}, nil
			}
			return &omdb.Record{
				Title: "The Office", Year: "2005", Type: domain.MediaTypeSeries,
				ExternalID: "tt0386676", IMDBRating: "8.9", HasPoster: true,
			}, nil
		},
	}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "The Office"})
	require.NoError(t, err)
	require.True(t, res.Found())
	// rated+poster series (50+10+5) outscores ratingless movie (50+3)
	assert.Equal(t, domain.MediaTypeSeries, res.Record.Type)
}

func TestResolveRatinglessRecordCachedAsMiss(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			return &omdb.Record{Title: "Obscurity", Year: "2019", Type: domain.MediaTypeMovie, ExternalID: "tt0000002"}, nil
		},
	}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Obscurity", Year: "2019", Type: domain.MediaTypeMovie})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.NotNil(t, res.Miss)
}

func TestResolveTimeoutAbsorbedMidStrategy(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			if mediaType == domain.MediaTypeMovie {
				return nil, errors.Wrap(domain.ErrUpstreamTimeout, "after 8s")
			}
			return &omdb.Record{
				Title: "The Wire", Year: "2002", Type: domain.MediaTypeSeries,
				ExternalID: "tt0306414", IMDBRating: "9.3", HasPoster: true,
			}, nil
		},
	}
	f := newFixture(t, upstream, 1000)

	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "The Wire", Year: "2002"})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, "9.3", res.Record.IMDBRating)
}

func TestResolveFinalStepFailureSurfacesAndIsNotCached(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			return nil, errors.Wrap(domain.ErrUpstreamUnavailable, "connection refused")
		},
		searchFn: func(title string) ([]omdb.SearchResult, error) {
			return nil, errors.Wrap(domain.ErrUpstreamUnavailable, "connection refused")
		},
	}
	f := newFixture(t, upstream, 1000)

	_, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))

	// nothing was cached: a retry reaches upstream again
	calls := upstream.calls
	_, err = f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	assert.Error(t, err)
	assert.Greater(t, upstream.calls, calls)
}

func TestResolveInvalidCredentialAbortsAndIsNotCached(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			return nil, errors.Wrap(domain.ErrInvalidCredential, "Invalid API key!")
		},
	}
	f := newFixture(t, upstream, 1000)

	_, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	assert.True(t, errors.Is(err, domain.ErrInvalidCredential))
	// aborted after the first call, no fallback steps attempted
	assert.Equal(t, 1, upstream.calls)

	// must not poison the cache: after the key is fixed, resolution works
	upstream.exactFn = func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
		if mediaType == domain.MediaTypeMovie {
			return inceptionRecord(), nil
		}
		return nil, nil
	}
	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	require.NoError(t, err)
	assert.True(t, res.Found())
}

func TestResolveDistinctKeysPerMetadata(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeUpstream{
		exactFn: func(title, year string, mediaType domain.MediaType) (*omdb.Record, error) {
			if mediaType == domain.MediaTypeMovie {
				return inceptionRecord(), nil
			}
			return nil, nil
		},
	}
	f := newFixture(t, upstream, 1000)

	_, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception"})
	require.NoError(t, err)
	calls := upstream.calls

	// a richer query with extra metadata is an independent cache entry
	res, err := f.service.Resolve(ctx, domain.LookupQuery{Title: "Inception", Year: "2010", Type: domain.MediaTypeMovie})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Greater(t, upstream.calls, calls)
}
